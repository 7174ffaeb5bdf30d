package application

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/domain"
)

// Config carries the tunables resolved by bootstrap. Commission defaults are
// deployment configuration, never hard-coded in accrual logic.
type Config struct {
	Token                string
	Rates                domain.RateSchedule
	ReferralCodeLength   int
	ReferralCodeAttempts int
	// StrictReferralCodes makes registration fail on an unresolvable code
	// instead of creating the user without a referrer link.
	StrictReferralCodes bool
	TradeJobTTL         time.Duration
	EstimatedProcessing string
	DefaultPageLimit    int
	MaxPageLimit        int
}

type PaginationMeta struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	Pages   int  `json:"pages"`
	HasNext bool `json:"hasNext"`
	HasPrev bool `json:"hasPrev"`
}

type UserCounts struct {
	Referrals   int `json:"referrals"`
	Commissions int `json:"commissions"`
}

type UserItem struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	ReferralCode  *string    `json:"referralCode,omitempty"`
	ReferrerID    *uuid.UUID `json:"referrerId,omitempty"`
	IsKOL         bool       `json:"isKOL"`
	HasWaivedFees bool       `json:"hasWaivedFees"`
	CreatedAt     time.Time  `json:"createdAt"`
	Count         UserCounts `json:"_count"`
}

type UserListResponse struct {
	Data       []UserItem     `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

type RegisterRequest struct {
	Name         string `json:"name"`
	ReferralCode string `json:"referralCode,omitempty"`
}

type RegisterResponse struct {
	UserID            uuid.UUID `json:"userId"`
	Message           string    `json:"message"`
	ReferrerValidated *bool     `json:"referrerValidated,omitempty"`
}

type GenerateCodeRequest struct {
	UserID uuid.UUID `json:"userId"`
}

type GenerateCodeResponse struct {
	ReferralCode string `json:"referralCode"`
}

type NetworkUser struct {
	UserItem
	Level      int       `json:"level"`
	ReferrerID uuid.UUID `json:"referrerId"`
}

type NetworkStats struct {
	TotalReferrals int  `json:"totalReferrals"`
	Level1Count    int  `json:"level1Count"`
	Level2Count    int  `json:"level2Count"`
	Level3Count    int  `json:"level3Count"`
	TotalPages     int  `json:"totalPages"`
	CurrentPage    int  `json:"currentPage"`
	HasNextPage    bool `json:"hasNextPage"`
	HasPrevPage    bool `json:"hasPrevPage"`
}

type NetworkResponse struct {
	RootUser   UserItem       `json:"rootUser"`
	Network    []NetworkUser  `json:"network"`
	Stats      NetworkStats   `json:"stats"`
	Pagination PaginationMeta `json:"pagination"`
}

// LevelStats is one per-level aggregate slice of the ledger.
// Amounts travel as strings so decimal precision survives JSON.
type LevelStats struct {
	Count     int    `json:"count"`
	Total     string `json:"total"`
	Claimed   string `json:"claimed"`
	Unclaimed string `json:"unclaimed"`
}

type DateRange struct {
	StartDate *string `json:"startDate"`
	EndDate   *string `json:"endDate"`
}

// EarningsSummary partitions level-0 cashback from levels 1-3 referral
// commissions. The combined figure is only ever the explicit CombinedTotal.
type EarningsSummary struct {
	TotalEarnings      string                `json:"totalEarnings"`
	TotalClaimed       string                `json:"totalClaimed"`
	TotalUnclaimed     string                `json:"totalUnclaimed"`
	Cashback           LevelStats            `json:"cashback"`
	CombinedTotal      string                `json:"combinedTotal"`
	TotalReferredUsers int                   `json:"totalReferredUsers"`
	LevelBreakdown     map[string]LevelStats `json:"levelBreakdown"`
	DateRange          DateRange             `json:"dateRange"`
}

type CommissionItem struct {
	ID        uuid.UUID `json:"id"`
	Amount    string    `json:"amount"`
	Token     string    `json:"token"`
	Claimed   bool      `json:"claimed"`
	TradeID   string    `json:"tradeId"`
	CreatedAt time.Time `json:"createdAt"`
}

type EarningItem struct {
	ReferredUser     UserItem         `json:"referredUser"`
	Level            int              `json:"level"`
	TotalCommissions int              `json:"totalCommissions"`
	Claimed          string           `json:"claimed"`
	Unclaimed        string           `json:"unclaimed"`
	Total            string           `json:"total"`
	Commissions      []CommissionItem `json:"commissions"`
}

type EarningsResponse struct {
	Summary  EarningsSummary `json:"summary"`
	Earnings []EarningItem   `json:"earnings"`
}

type ClaimRequest struct {
	UserID   uuid.UUID  `json:"userId"`
	ClaimID  *uuid.UUID `json:"claimId,omitempty"`
	ClaimAll bool       `json:"claimAll,omitempty"`
	Token    string     `json:"token,omitempty"`
}

type ClaimResponse struct {
	Success            bool       `json:"success"`
	Claimed            string     `json:"claimed"`
	Token              string     `json:"token"`
	CommissionID       *uuid.UUID `json:"commissionId,omitempty"`
	CommissionsClaimed *int       `json:"commissionsClaimed,omitempty"`
}

type TradeRequest struct {
	UserID    uuid.UUID       `json:"userId"`
	Volume    decimal.Decimal `json:"volume"`
	Fee       decimal.Decimal `json:"fee"`
	TradeType string          `json:"tradeType,omitempty"`
}

type TradeAck struct {
	Message                 string `json:"message"`
	WebhookID               string `json:"webhookId"`
	JobID                   string `json:"jobId"`
	EstimatedProcessingTime string `json:"estimatedProcessingTime"`
}

type ProfilePayload struct {
	IsKOL         bool                `json:"isKOL"`
	HasWaivedFees bool                `json:"hasWaivedFees"`
	CustomRates   *domain.CustomRates `json:"customRates,omitempty"`
}

type ProfileResponse struct {
	UserID            uuid.UUID      `json:"userId"`
	Name              string         `json:"name"`
	CommissionProfile ProfilePayload `json:"commissionProfile"`
	Message           string         `json:"message,omitempty"`
}

// UpdateProfileRequest is a partial patch. CustomRates distinguishes three
// shapes: field absent (keep), explicit null (clear), object (replace).
type UpdateProfileRequest struct {
	IsKOL         *bool               `json:"isKOL"`
	HasWaivedFees *bool               `json:"hasWaivedFees"`
	CustomRates   *domain.CustomRates `json:"customRates"`

	customRatesPresent bool
}

func (r *UpdateProfileRequest) UnmarshalJSON(data []byte) error {
	type alias UpdateProfileRequest
	var parsed alias
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	*r = UpdateProfileRequest(parsed)
	_, r.customRatesPresent = keys["customRates"]
	return nil
}

// CustomRatesPresent reports whether the patch mentioned customRates at all.
func (r *UpdateProfileRequest) CustomRatesPresent() bool {
	return r.customRatesPresent
}
