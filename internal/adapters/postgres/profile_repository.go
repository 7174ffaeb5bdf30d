package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type profileRepository struct {
	db *gorm.DB
}

func (r *profileRepository) Get(ctx context.Context, userID uuid.UUID) (domain.CommissionProfile, error) {
	var rec commissionProfileModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Absence means "no overrides": the zero profile resolves to the
			// schedule defaults.
			return domain.CommissionProfile{UserID: userID}, nil
		}
		return domain.CommissionProfile{}, err
	}
	return toDomainProfile(rec)
}

func (r *profileRepository) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.CommissionProfile, error) {
	profiles := make(map[uuid.UUID]domain.CommissionProfile, len(ids))
	for _, id := range ids {
		profiles[id] = domain.CommissionProfile{UserID: id}
	}
	if len(ids) == 0 {
		return profiles, nil
	}

	var rows []commissionProfileModel
	if err := r.db.WithContext(ctx).
		Where("user_id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		profile, err := toDomainProfile(row)
		if err != nil {
			return nil, err
		}
		profiles[row.UserID] = profile
	}
	return profiles, nil
}

func (r *profileRepository) Upsert(ctx context.Context, profile domain.CommissionProfile) error {
	rates, err := customRatesColumn(profile.CustomRates)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&userModel{}).
			Where("user_id = ?", profile.UserID).
			Updates(map[string]any{
				"is_kol":          profile.IsKOL,
				"has_waived_fees": profile.HasWaivedFees,
				"updated_at":      profile.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}

		rec := commissionProfileModel{
			UserID:        profile.UserID,
			IsKOL:         profile.IsKOL,
			HasWaivedFees: profile.HasWaivedFees,
			CustomRates:   rates,
			UpdatedAt:     profile.UpdatedAt,
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"is_kol", "has_waived_fees", "custom_rates", "updated_at",
			}),
		}).Create(&rec).Error
	})
}
