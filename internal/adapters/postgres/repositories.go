package postgres

import (
	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Users       ports.UserRepository
	Profiles    ports.ProfileRepository
	Commissions ports.CommissionRepository
	Outbox      ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Users:       &userRepository{db: db},
		Profiles:    &profileRepository{db: db},
		Commissions: &commissionRepository{db: db},
		Outbox:      &outboxRepository{db: db},
	}
}
