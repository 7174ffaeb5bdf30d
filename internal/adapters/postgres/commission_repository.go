package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type commissionRepository struct {
	db *gorm.DB
}

func (r *commissionRepository) CreateTradeBatchTx(ctx context.Context, trade ports.ProcessedTrade, records []domain.CommissionRecord, outboxEvent ports.OutboxEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		marker := processedTradeModel{
			TradeID:     trade.TradeID,
			UserID:      trade.UserID,
			Volume:      trade.Volume,
			Fee:         trade.Fee,
			TradeType:   trade.TradeType,
			ProcessedAt: trade.ProcessedAt,
		}
		if err := tx.Create(&marker).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrDuplicateTrade
			}
			return err
		}

		for _, record := range records {
			rec := commissionModel{
				CommissionID: record.CommissionID,
				UserID:       record.UserID,
				SourceUserID: record.SourceUserID,
				TradeID:      record.TradeID,
				Level:        record.Level,
				Token:        record.Token,
				Amount:       record.Amount,
				Claimed:      record.Claimed,
				CreatedAt:    record.CreatedAt,
			}
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
			res := tx.Model(&userModel{}).
				Where("user_id = ?", record.UserID).
				Updates(map[string]any{
					"commission_count": gorm.Expr("commission_count + 1"),
					"updated_at":       trade.ProcessedAt,
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
			PartitionKey: outboxEvent.PartitionKey,
			Payload:      string(payload),
			CreatedAt:    outboxEvent.OccurredAt,
		}
		return tx.Create(&outbox).Error
	})
}

func (r *commissionRepository) ListByUser(ctx context.Context, userID uuid.UUID, from, to *time.Time) ([]domain.CommissionRecord, error) {
	query := r.db.WithContext(ctx).
		Model(&commissionModel{}).
		Where("user_id = ?", userID).
		Order("created_at ASC, commission_id ASC")
	if from != nil {
		query = query.Where("created_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("created_at <= ?", *to)
	}

	var rows []commissionModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]domain.CommissionRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, toDomainCommission(row))
	}
	return records, nil
}

func (r *commissionRepository) ClaimOne(ctx context.Context, userID, commissionID uuid.UUID, at time.Time) (domain.CommissionRecord, error) {
	res := r.db.WithContext(ctx).
		Model(&commissionModel{}).
		Where("commission_id = ?", commissionID).
		Where("user_id = ?", userID).
		Where("claimed = FALSE").
		Updates(map[string]any{
			"claimed":    true,
			"claimed_at": at,
		})
	if res.Error != nil {
		return domain.CommissionRecord{}, res.Error
	}
	if res.RowsAffected == 0 {
		var rec commissionModel
		if err := r.db.WithContext(ctx).
			Where("commission_id = ?", commissionID).
			Where("user_id = ?", userID).
			Take(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.CommissionRecord{}, domain.ErrNotFound
			}
			return domain.CommissionRecord{}, err
		}
		return domain.CommissionRecord{}, domain.ErrAlreadyClaimed
	}

	var rec commissionModel
	if err := r.db.WithContext(ctx).
		Where("commission_id = ?", commissionID).
		Take(&rec).Error; err != nil {
		return domain.CommissionRecord{}, err
	}
	return toDomainCommission(rec), nil
}

func (r *commissionRepository) ClaimAll(ctx context.Context, userID uuid.UUID, at time.Time) (ports.ClaimAllResult, error) {
	result := ports.ClaimAllResult{Settled: decimal.Zero}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []commissionModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			Where("claimed = FALSE").
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.CommissionID)
			result.Settled = result.Settled.Add(row.Amount)
		}
		res := tx.Model(&commissionModel{}).
			Where("commission_id IN ?", ids).
			Where("claimed = FALSE").
			Updates(map[string]any{
				"claimed":    true,
				"claimed_at": at,
			})
		if res.Error != nil {
			return res.Error
		}
		result.Count = int(res.RowsAffected)
		return nil
	})
	if err != nil {
		return ports.ClaimAllResult{}, err
	}
	return result, nil
}
