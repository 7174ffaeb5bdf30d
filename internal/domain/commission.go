package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TokenScale is the minor-unit precision of the payout token.
// Every accrued amount for a trade is rounded half-even to this scale so
// cashback and all three upline levels share one rounding policy.
const TokenScale = 8

// CommissionRecord is one ledger entry. Immutable once created except for the
// one-way claimed transition; records are retained forever as the audit trail.
type CommissionRecord struct {
	CommissionID uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"userId"`
	SourceUserID uuid.UUID       `json:"sourceUserId"`
	TradeID      string          `json:"tradeId"`
	Level        int             `json:"level"`
	Token        string          `json:"token"`
	Amount       decimal.Decimal `json:"amount"`
	Claimed      bool            `json:"claimed"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// CustomRates are per-level admin overrides, meaningful only for KOL users.
// A nil level means "use the system default for that level".
type CustomRates struct {
	Level1 *decimal.Decimal `json:"level1"`
	Level2 *decimal.Decimal `json:"level2"`
	Level3 *decimal.Decimal `json:"level3"`
}

// Level returns the override for levels 1..3, or nil when unset.
func (r *CustomRates) Level(level int) *decimal.Decimal {
	if r == nil {
		return nil
	}
	switch level {
	case 1:
		return r.Level1
	case 2:
		return r.Level2
	case 3:
		return r.Level3
	default:
		return nil
	}
}

// IsEmpty reports whether no override is set at any level.
func (r *CustomRates) IsEmpty() bool {
	return r == nil || (r.Level1 == nil && r.Level2 == nil && r.Level3 == nil)
}

// Validate rejects any present rate outside [0,1]. Validation covers the whole
// set before anything is applied, so a bad level never partially updates a profile.
func (r *CustomRates) Validate() error {
	if r == nil {
		return nil
	}
	for level := 1; level <= MaxNetworkDepth; level++ {
		rate := r.Level(level)
		if rate == nil {
			continue
		}
		if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("%w: level%d must be within [0,1]", ErrInvalidRate, level)
		}
	}
	return nil
}

// CommissionProfile is the per-user override record, keyed 1:1 with User.
type CommissionProfile struct {
	UserID        uuid.UUID    `json:"userId"`
	IsKOL         bool         `json:"isKOL"`
	HasWaivedFees bool         `json:"hasWaivedFees"`
	CustomRates   *CustomRates `json:"customRates,omitempty"`
	UpdatedAt     time.Time    `json:"-"`
}

// RateSchedule holds the system default rates. These are configuration, not
// constants: deployments tune them without touching accrual logic.
type RateSchedule struct {
	Cashback  decimal.Decimal
	Level1    decimal.Decimal
	Level2    decimal.Decimal
	Level3    decimal.Decimal
	KOLDirect decimal.Decimal
}

// Level returns the default upline rate for levels 1..3.
func (s RateSchedule) Level(level int) decimal.Decimal {
	switch level {
	case 1:
		return s.Level1
	case 2:
		return s.Level2
	case 3:
		return s.Level3
	default:
		return decimal.Zero
	}
}

// EffectiveRates is the resolved rate view for one user: the cashback rate on
// their own trades and the per-level rate they earn as a beneficiary.
type EffectiveRates struct {
	Cashback decimal.Decimal
	Upline   [MaxNetworkDepth]decimal.Decimal
}

// ResolveEffectiveRates applies the profile resolution order: waived fees zero
// everything; KOL users earn an elevated direct rate (custom level1 or the
// configured KOL direct rate) as cashback and custom rates where present as
// beneficiary; everyone else uses the schedule defaults.
func ResolveEffectiveRates(p CommissionProfile, defaults RateSchedule) EffectiveRates {
	if p.HasWaivedFees {
		return EffectiveRates{Cashback: decimal.Zero}
	}
	rates := EffectiveRates{Cashback: defaults.Cashback}
	for level := 1; level <= MaxNetworkDepth; level++ {
		rates.Upline[level-1] = defaults.Level(level)
	}
	if !p.IsKOL {
		return rates
	}
	rates.Cashback = defaults.KOLDirect
	if custom := p.CustomRates.Level(1); custom != nil {
		rates.Cashback = *custom
	}
	for level := 1; level <= MaxNetworkDepth; level++ {
		if custom := p.CustomRates.Level(level); custom != nil {
			rates.Upline[level-1] = *custom
		}
	}
	return rates
}

// UplineRate resolves the rate paid to a beneficiary at the given level for a
// trade by the given trader. KOL trades pay direct commission only: upline
// levels are suppressed unless the KOL carries an explicit custom rate for
// that level. Otherwise eligibility is per-beneficiary, resolved from the
// beneficiary's own profile.
func UplineRate(trader, beneficiary CommissionProfile, defaults RateSchedule, level int) decimal.Decimal {
	if level < 1 || level > MaxNetworkDepth {
		return decimal.Zero
	}
	if trader.HasWaivedFees || beneficiary.HasWaivedFees {
		return decimal.Zero
	}
	if trader.IsKOL {
		if custom := trader.CustomRates.Level(level); custom != nil {
			return *custom
		}
		return decimal.Zero
	}
	return ResolveEffectiveRates(beneficiary, defaults).Upline[level-1]
}

// RoundAmount applies the fixed rounding policy (half-even to the token scale).
func RoundAmount(amount decimal.Decimal) decimal.Decimal {
	return amount.RoundBank(TokenScale)
}

// AncestorProfile pairs an upline user with its hop distance and profile.
type AncestorProfile struct {
	UserID  uuid.UUID
	Level   int
	Profile CommissionProfile
}

// ComputeAccruals produces the full commission batch for one trade: a level-0
// cashback record for the trader plus up to MaxNetworkDepth upline records.
// Zero amounts are dropped rather than persisted. A waived-fee trader yields
// no records at all; the caller still marks the trade processed.
func ComputeAccruals(
	traderID uuid.UUID,
	trader CommissionProfile,
	ancestors []AncestorProfile,
	fee decimal.Decimal,
	defaults RateSchedule,
	token, tradeID string,
	now time.Time,
) []CommissionRecord {
	if trader.HasWaivedFees {
		return nil
	}
	records := make([]CommissionRecord, 0, 1+len(ancestors))

	cashback := RoundAmount(fee.Mul(ResolveEffectiveRates(trader, defaults).Cashback))
	if cashback.IsPositive() {
		records = append(records, CommissionRecord{
			CommissionID: uuid.New(),
			UserID:       traderID,
			SourceUserID: traderID,
			TradeID:      tradeID,
			Level:        0,
			Token:        token,
			Amount:       cashback,
			CreatedAt:    now,
		})
	}

	for _, ancestor := range ancestors {
		rate := UplineRate(trader, ancestor.Profile, defaults, ancestor.Level)
		amount := RoundAmount(fee.Mul(rate))
		if !amount.IsPositive() {
			continue
		}
		records = append(records, CommissionRecord{
			CommissionID: uuid.New(),
			UserID:       ancestor.UserID,
			SourceUserID: traderID,
			TradeID:      tradeID,
			Level:        ancestor.Level,
			Token:        token,
			Amount:       amount,
			CreatedAt:    now,
		})
	}
	return records
}
