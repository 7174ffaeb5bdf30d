package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type userModel struct {
	UserID          uuid.UUID  `gorm:"column:user_id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name            string     `gorm:"column:name"`
	ReferralCode    *string    `gorm:"column:referral_code"`
	ReferrerID      *uuid.UUID `gorm:"column:referrer_id"`
	IsKOL           bool       `gorm:"column:is_kol"`
	HasWaivedFees   bool       `gorm:"column:has_waived_fees"`
	ReferralCount   int        `gorm:"column:referral_count"`
	CommissionCount int        `gorm:"column:commission_count"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "users" }

type commissionProfileModel struct {
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	IsKOL         bool      `gorm:"column:is_kol"`
	HasWaivedFees bool      `gorm:"column:has_waived_fees"`
	CustomRates   *string   `gorm:"column:custom_rates;type:jsonb"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (commissionProfileModel) TableName() string { return "commission_profiles" }

type processedTradeModel struct {
	TradeID     string          `gorm:"column:trade_id;primaryKey"`
	UserID      uuid.UUID       `gorm:"column:user_id"`
	Volume      decimal.Decimal `gorm:"column:volume;type:numeric(36,18)"`
	Fee         decimal.Decimal `gorm:"column:fee;type:numeric(36,18)"`
	TradeType   string          `gorm:"column:trade_type"`
	ProcessedAt time.Time       `gorm:"column:processed_at"`
}

func (processedTradeModel) TableName() string { return "processed_trades" }

type commissionModel struct {
	CommissionID uuid.UUID       `gorm:"column:commission_id;type:uuid;primaryKey"`
	UserID       uuid.UUID       `gorm:"column:user_id"`
	SourceUserID uuid.UUID       `gorm:"column:source_user_id"`
	TradeID      string          `gorm:"column:trade_id"`
	Level        int             `gorm:"column:level"`
	Token        string          `gorm:"column:token"`
	Amount       decimal.Decimal `gorm:"column:amount;type:numeric(36,18)"`
	Claimed      bool            `gorm:"column:claimed"`
	ClaimedAt    *time.Time      `gorm:"column:claimed_at"`
	CreatedAt    time.Time       `gorm:"column:created_at"`
}

func (commissionModel) TableName() string { return "commissions" }

type referralOutboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (referralOutboxModel) TableName() string { return "referral_outbox" }
