package postgres

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/domain"
	"gorm.io/gorm"
)

func toDomainUser(row userModel) domain.User {
	return domain.User{
		UserID:          row.UserID,
		Name:            row.Name,
		ReferralCode:    row.ReferralCode,
		ReferrerID:      row.ReferrerID,
		IsKOL:           row.IsKOL,
		HasWaivedFees:   row.HasWaivedFees,
		ReferralCount:   row.ReferralCount,
		CommissionCount: row.CommissionCount,
		CreatedAt:       row.CreatedAt,
	}
}

func toDomainProfile(row commissionProfileModel) (domain.CommissionProfile, error) {
	profile := domain.CommissionProfile{
		UserID:        row.UserID,
		IsKOL:         row.IsKOL,
		HasWaivedFees: row.HasWaivedFees,
		UpdatedAt:     row.UpdatedAt,
	}
	if row.CustomRates != nil {
		var rates domain.CustomRates
		if err := json.Unmarshal([]byte(*row.CustomRates), &rates); err != nil {
			return domain.CommissionProfile{}, fmt.Errorf("decode custom rates for %s: %w", row.UserID, err)
		}
		if !rates.IsEmpty() {
			profile.CustomRates = &rates
		}
	}
	return profile, nil
}

func customRatesColumn(rates *domain.CustomRates) (*string, error) {
	if rates.IsEmpty() {
		return nil, nil
	}
	raw, err := json.Marshal(rates)
	if err != nil {
		return nil, fmt.Errorf("encode custom rates: %w", err)
	}
	encoded := string(raw)
	return &encoded, nil
}

func toDomainCommission(row commissionModel) domain.CommissionRecord {
	return domain.CommissionRecord{
		CommissionID: row.CommissionID,
		UserID:       row.UserID,
		SourceUserID: row.SourceUserID,
		TradeID:      row.TradeID,
		Level:        row.Level,
		Token:        row.Token,
		Amount:       row.Amount,
		Claimed:      row.Claimed,
		CreatedAt:    row.CreatedAt,
	}
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
