package application

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/domain"
)

type levelAccumulator struct {
	count     int
	total     decimal.Decimal
	claimed   decimal.Decimal
	unclaimed decimal.Decimal
}

func (a *levelAccumulator) add(rec domain.CommissionRecord) {
	a.count++
	a.total = a.total.Add(rec.Amount)
	if rec.Claimed {
		a.claimed = a.claimed.Add(rec.Amount)
	} else {
		a.unclaimed = a.unclaimed.Add(rec.Amount)
	}
}

func (a levelAccumulator) stats() LevelStats {
	return LevelStats{
		Count:     a.count,
		Total:     money(a.total),
		Claimed:   money(a.claimed),
		Unclaimed: money(a.unclaimed),
	}
}

// Earnings recomputes the per-user ledger view at call time: per-level
// aggregates with cashback partitioned from referral commissions, plus an
// itemized breakdown per source user with the nested records.
func (s *Service) Earnings(ctx context.Context, userID uuid.UUID, from, to *time.Time) (EarningsResponse, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return EarningsResponse{}, err
	}
	records, err := s.commissions.ListByUser(ctx, userID, from, to)
	if err != nil {
		return EarningsResponse{}, fmt.Errorf("list commissions: %w", err)
	}

	var cashback, referral levelAccumulator
	perLevel := map[int]*levelAccumulator{}
	bySource := map[uuid.UUID][]domain.CommissionRecord{}
	for _, rec := range records {
		if rec.Level == 0 {
			cashback.add(rec)
		} else {
			referral.add(rec)
			if _, ok := perLevel[rec.Level]; !ok {
				perLevel[rec.Level] = &levelAccumulator{}
			}
			perLevel[rec.Level].add(rec)
		}
		bySource[rec.SourceUserID] = append(bySource[rec.SourceUserID], rec)
	}

	breakdown := make(map[string]LevelStats, domain.MaxNetworkDepth)
	for level := 1; level <= domain.MaxNetworkDepth; level++ {
		acc := levelAccumulator{}
		if got, ok := perLevel[level]; ok {
			acc = *got
		}
		breakdown[strconv.Itoa(level)] = acc.stats()
	}

	items, err := s.earningItems(ctx, userID, bySource)
	if err != nil {
		return EarningsResponse{}, err
	}

	referredUsers := 0
	for sourceID := range bySource {
		if sourceID != userID {
			referredUsers++
		}
	}

	return EarningsResponse{
		Summary: EarningsSummary{
			TotalEarnings:      money(referral.total),
			TotalClaimed:       money(referral.claimed),
			TotalUnclaimed:     money(referral.unclaimed),
			Cashback:           cashback.stats(),
			CombinedTotal:      money(referral.total.Add(cashback.total)),
			TotalReferredUsers: referredUsers,
			LevelBreakdown:     breakdown,
			DateRange:          dateRange(from, to),
		},
		Earnings: items,
	}, nil
}

func (s *Service) earningItems(ctx context.Context, userID uuid.UUID, bySource map[uuid.UUID][]domain.CommissionRecord) ([]EarningItem, error) {
	if len(bySource) == 0 {
		return []EarningItem{}, nil
	}
	ids := make([]uuid.UUID, 0, len(bySource))
	for id := range bySource {
		ids = append(ids, id)
	}
	users, err := s.users.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load referred users: %w", err)
	}
	byID := make(map[uuid.UUID]domain.User, len(users))
	for _, u := range users {
		byID[u.UserID] = u
	}

	items := make([]EarningItem, 0, len(bySource))
	for sourceID, recs := range bySource {
		source, ok := byID[sourceID]
		if !ok {
			continue
		}
		var acc levelAccumulator
		level := 0
		commissions := make([]CommissionItem, 0, len(recs))
		for _, rec := range recs {
			acc.add(rec)
			if rec.Level > level {
				level = rec.Level
			}
			commissions = append(commissions, CommissionItem{
				ID:        rec.CommissionID,
				Amount:    money(rec.Amount),
				Token:     rec.Token,
				Claimed:   rec.Claimed,
				TradeID:   rec.TradeID,
				CreatedAt: rec.CreatedAt,
			})
		}
		sort.Slice(commissions, func(i, j int) bool {
			return commissions[i].CreatedAt.After(commissions[j].CreatedAt)
		})
		items = append(items, EarningItem{
			ReferredUser:     toUserItem(source),
			Level:            level,
			TotalCommissions: acc.count,
			Claimed:          money(acc.claimed),
			Unclaimed:        money(acc.unclaimed),
			Total:            money(acc.total),
			Commissions:      commissions,
		})
	}
	// Self cashback first, then referred users by registration order.
	sort.Slice(items, func(i, j int) bool {
		if (items[i].ReferredUser.ID == userID) != (items[j].ReferredUser.ID == userID) {
			return items[i].ReferredUser.ID == userID
		}
		return items[i].ReferredUser.CreatedAt.Before(items[j].ReferredUser.CreatedAt)
	})
	return items, nil
}

func dateRange(from, to *time.Time) DateRange {
	var r DateRange
	if from != nil {
		v := from.Format(time.RFC3339)
		r.StartDate = &v
	}
	if to != nil {
		v := to.Format(time.RFC3339)
		r.EndDate = &v
	}
	return r
}
