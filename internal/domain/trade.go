package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const TradeTypeSpot = "spot"

// TradeEvent is the ephemeral accrual input. It is not retained beyond the
// processed-trade marker and the trade id reference on ledger records.
type TradeEvent struct {
	TradeID    string          `json:"trade_id"`
	UserID     uuid.UUID       `json:"user_id"`
	Volume     decimal.Decimal `json:"volume"`
	Fee        decimal.Decimal `json:"fee"`
	TradeType  string          `json:"trade_type"`
	ReceivedAt time.Time       `json:"received_at"`
}

// ValidateTradeEvent checks accrual preconditions shared by the webhook and
// the broker consumer paths.
func ValidateTradeEvent(ev TradeEvent) error {
	if strings.TrimSpace(ev.TradeID) == "" {
		return fmt.Errorf("%w: trade id is required", ErrInvalidInput)
	}
	if ev.UserID == uuid.Nil {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if !ev.Volume.IsPositive() {
		return fmt.Errorf("%w: volume must be positive", ErrInvalidInput)
	}
	if !ev.Fee.IsPositive() {
		return fmt.Errorf("%w: fee must be positive", ErrInvalidInput)
	}
	return nil
}
