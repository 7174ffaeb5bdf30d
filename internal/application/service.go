package application

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/ports"
)

type Service struct {
	cfg         Config
	users       ports.UserRepository
	profiles    ports.ProfileRepository
	commissions ports.CommissionRepository
	outbox      ports.OutboxRepository
	tradeJobs   ports.TradeJobStore
	nowFn       func() time.Time
}

type Dependencies struct {
	Config      Config
	Users       ports.UserRepository
	Profiles    ports.ProfileRepository
	Commissions ports.CommissionRepository
	Outbox      ports.OutboxRepository
	TradeJobs   ports.TradeJobStore
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ReferralCodeLength <= 0 {
		cfg.ReferralCodeLength = 6
	}
	if cfg.ReferralCodeAttempts <= 0 {
		cfg.ReferralCodeAttempts = 5
	}
	if cfg.DefaultPageLimit <= 0 {
		cfg.DefaultPageLimit = 20
	}
	if cfg.MaxPageLimit <= 0 {
		cfg.MaxPageLimit = 100
	}
	if cfg.Token == "" {
		cfg.Token = "XP"
	}
	if cfg.TradeJobTTL <= 0 {
		cfg.TradeJobTTL = time.Hour
	}
	if cfg.EstimatedProcessing == "" {
		cfg.EstimatedProcessing = "5-10 seconds"
	}
	return &Service{
		cfg:         cfg,
		users:       deps.Users,
		profiles:    deps.Profiles,
		commissions: deps.Commissions,
		outbox:      deps.Outbox,
		tradeJobs:   deps.TradeJobs,
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) normalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = s.cfg.DefaultPageLimit
	}
	if limit > s.cfg.MaxPageLimit {
		limit = s.cfg.MaxPageLimit
	}
	return page, limit
}

func paginationMeta(page, limit, total int) PaginationMeta {
	pages := 0
	if total > 0 {
		pages = (total + limit - 1) / limit
	}
	return PaginationMeta{
		Page:    page,
		Limit:   limit,
		Total:   total,
		Pages:   pages,
		HasNext: page < pages,
		HasPrev: page > 1 && total > 0,
	}
}

func toUserItem(u domain.User) UserItem {
	return UserItem{
		ID:            u.UserID,
		Name:          u.Name,
		ReferralCode:  u.ReferralCode,
		ReferrerID:    u.ReferrerID,
		IsKOL:         u.IsKOL,
		HasWaivedFees: u.HasWaivedFees,
		CreatedAt:     u.CreatedAt,
		Count: UserCounts{
			Referrals:   u.ReferralCount,
			Commissions: u.CommissionCount,
		},
	}
}

func money(d decimal.Decimal) string {
	return domain.RoundAmount(d).String()
}
