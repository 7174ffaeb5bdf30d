package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/ports"
	"gorm.io/gorm"
)

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) CreateWithOutboxTx(ctx context.Context, params ports.CreateUserParams, outboxEvent ports.OutboxEvent) (domain.User, error) {
	var result domain.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := userModel{
			Name:       params.Name,
			ReferrerID: params.ReferrerID,
			CreatedAt:  params.RegisteredAtUTC,
			UpdatedAt:  params.RegisteredAtUTC,
		}
		if err := tx.Create(&rec).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return err
		}

		if params.ReferrerID != nil {
			res := tx.Model(&userModel{}).
				Where("user_id = ?", *params.ReferrerID).
				Updates(map[string]any{
					"referral_count": gorm.Expr("referral_count + 1"),
					"updated_at":     params.RegisteredAtUTC,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return domain.ErrNotFound
			}
		}

		payload := outboxEvent.Payload
		if len(payload) == 0 {
			payload = []byte(`{}`)
		}
		outbox := referralOutboxModel{
			OutboxID:     outboxEvent.EventID,
			EventType:    outboxEvent.EventType,
			PartitionKey: rec.UserID.String(),
			Payload:      string(payload),
			CreatedAt:    outboxEvent.OccurredAt,
		}
		if err := tx.Create(&outbox).Error; err != nil {
			return err
		}

		result = toDomainUser(rec)
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	return result, nil
}

func (r *userRepository) GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error) {
	var rec userModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, err
	}
	return toDomainUser(rec), nil
}

func (r *userRepository) GetByReferralCode(ctx context.Context, code string) (domain.User, error) {
	var rec userModel
	if err := r.db.WithContext(ctx).Where("referral_code = ?", code).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, err
	}
	return toDomainUser(rec), nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]domain.User, int, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&userModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []userModel
	if err := r.db.WithContext(ctx).
		Order("created_at ASC, user_id ASC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	users := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, toDomainUser(row))
	}
	return users, int(total), nil
}

func (r *userRepository) AssignCodeWithOutboxTx(ctx context.Context, userID uuid.UUID, code string, outboxEvent ports.OutboxEvent, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&userModel{}).
			Where("user_id = ?", userID).
			Where("referral_code IS NULL").
			Updates(map[string]any{
				"referral_code": code,
				"updated_at":    at,
			})
		if res.Error != nil {
			if isUniqueViolation(res.Error) {
				return domain.ErrConflict
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Either the user does not exist or a code is already set; the
			// follow-up read disambiguates.
			var rec userModel
			if err := tx.Where("user_id = ?", userID).Take(&rec).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return domain.ErrNotFound
				}
				return err
			}
			return domain.ErrAlreadyHasCode
		}

		payload := outboxEvent.Payload
		if len(payload) == 0 {
			payload = []byte(`{}`)
		}
		outbox := referralOutboxModel{
			OutboxID:     outboxEvent.EventID,
			EventType:    outboxEvent.EventType,
			PartitionKey: userID.String(),
			Payload:      string(payload),
			CreatedAt:    outboxEvent.OccurredAt,
		}
		return tx.Create(&outbox).Error
	})
}

func (r *userRepository) ListChildIDs(ctx context.Context, parentIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&userModel{}).
		Where("referrer_id IN ?", parentIDs).
		Order("created_at ASC, user_id ASC").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *userRepository) GetMany(ctx context.Context, ids []uuid.UUID) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []userModel
	if err := r.db.WithContext(ctx).
		Where("user_id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]userModel, len(rows))
	for _, row := range rows {
		byID[row.UserID] = row
	}
	// Preserve the caller's ordering; ids without a row are skipped.
	users := make([]domain.User, 0, len(rows))
	for _, id := range ids {
		if row, ok := byID[id]; ok {
			users = append(users, toDomainUser(row))
		}
	}
	return users, nil
}
