package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func testSchedule() RateSchedule {
	return RateSchedule{
		Cashback:  dec("0.10"),
		Level1:    dec("0.30"),
		Level2:    dec("0.03"),
		Level3:    dec("0.02"),
		KOLDirect: dec("0.50"),
	}
}

func TestResolveEffectiveRatesDefaults(t *testing.T) {
	t.Parallel()

	rates := ResolveEffectiveRates(CommissionProfile{}, testSchedule())
	if !rates.Cashback.Equal(dec("0.10")) {
		t.Fatalf("cashback = %s, want 0.10", rates.Cashback)
	}
	want := []string{"0.30", "0.03", "0.02"}
	for i, w := range want {
		if !rates.Upline[i].Equal(dec(w)) {
			t.Fatalf("upline level %d = %s, want %s", i+1, rates.Upline[i], w)
		}
	}
}

func TestResolveEffectiveRatesWaivedZerosEverything(t *testing.T) {
	t.Parallel()

	rates := ResolveEffectiveRates(CommissionProfile{HasWaivedFees: true, IsKOL: true}, testSchedule())
	if !rates.Cashback.IsZero() {
		t.Fatalf("waived cashback = %s, want 0", rates.Cashback)
	}
	for i, r := range rates.Upline {
		if !r.IsZero() {
			t.Fatalf("waived upline level %d = %s, want 0", i+1, r)
		}
	}
}

func TestResolveEffectiveRatesKOL(t *testing.T) {
	t.Parallel()

	kol := CommissionProfile{IsKOL: true}
	rates := ResolveEffectiveRates(kol, testSchedule())
	if !rates.Cashback.Equal(dec("0.50")) {
		t.Fatalf("kol cashback = %s, want kol direct 0.50", rates.Cashback)
	}

	custom := CommissionProfile{IsKOL: true, CustomRates: &CustomRates{Level1: decPtr("0.45"), Level2: decPtr("0.05")}}
	rates = ResolveEffectiveRates(custom, testSchedule())
	if !rates.Cashback.Equal(dec("0.45")) {
		t.Fatalf("custom kol cashback = %s, want 0.45", rates.Cashback)
	}
	if !rates.Upline[1].Equal(dec("0.05")) {
		t.Fatalf("custom kol level 2 = %s, want 0.05", rates.Upline[1])
	}
	if !rates.Upline[2].Equal(dec("0.02")) {
		t.Fatalf("custom kol level 3 = %s, want default 0.02", rates.Upline[2])
	}
}

func TestUplineRateKOLTraderSuppressesDefaults(t *testing.T) {
	t.Parallel()

	kolTrader := CommissionProfile{IsKOL: true}
	beneficiary := CommissionProfile{}
	for level := 1; level <= MaxNetworkDepth; level++ {
		if r := UplineRate(kolTrader, beneficiary, testSchedule(), level); !r.IsZero() {
			t.Fatalf("kol trade upline level %d = %s, want suppressed", level, r)
		}
	}

	kolWithCustom := CommissionProfile{IsKOL: true, CustomRates: &CustomRates{Level2: decPtr("0.01")}}
	if r := UplineRate(kolWithCustom, beneficiary, testSchedule(), 2); !r.Equal(dec("0.01")) {
		t.Fatalf("kol custom level 2 = %s, want 0.01", r)
	}
	if r := UplineRate(kolWithCustom, beneficiary, testSchedule(), 1); !r.IsZero() {
		t.Fatalf("kol level 1 without custom = %s, want 0", r)
	}
}

func TestUplineRateWaivedBeneficiaryEarnsNothing(t *testing.T) {
	t.Parallel()

	trader := CommissionProfile{}
	waived := CommissionProfile{HasWaivedFees: true}
	for level := 1; level <= MaxNetworkDepth; level++ {
		if r := UplineRate(trader, waived, testSchedule(), level); !r.IsZero() {
			t.Fatalf("waived beneficiary level %d = %s, want 0", level, r)
		}
	}
}

func TestCustomRatesValidate(t *testing.T) {
	t.Parallel()

	valid := &CustomRates{Level1: decPtr("0"), Level2: decPtr("1"), Level3: decPtr("0.5")}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid rates rejected: %v", err)
	}
	tooHigh := &CustomRates{Level1: decPtr("0.4"), Level3: decPtr("1.01")}
	if err := tooHigh.Validate(); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate for 1.01, got %v", err)
	}
	negative := &CustomRates{Level2: decPtr("-0.1")}
	if err := negative.Validate(); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate for negative, got %v", err)
	}
	var nilRates *CustomRates
	if err := nilRates.Validate(); err != nil {
		t.Fatalf("nil rates should validate: %v", err)
	}
}

func TestComputeAccrualsStandardChain(t *testing.T) {
	t.Parallel()

	traderID := uuid.New()
	a := uuid.New()
	b := uuid.New()
	c := uuid.New()
	ancestors := []AncestorProfile{
		{UserID: a, Level: 1},
		{UserID: b, Level: 2},
		{UserID: c, Level: 3},
	}
	now := time.Now().UTC()

	records := ComputeAccruals(traderID, CommissionProfile{}, ancestors, dec("100"), testSchedule(), "XP", "trade-1", now)
	if len(records) != 4 {
		t.Fatalf("records = %d, want 4", len(records))
	}

	byUser := map[uuid.UUID]CommissionRecord{}
	for _, rec := range records {
		byUser[rec.UserID] = rec
		if rec.TradeID != "trade-1" || rec.Token != "XP" || rec.Claimed {
			t.Fatalf("unexpected record shape: %+v", rec)
		}
		if rec.SourceUserID != traderID {
			t.Fatalf("source = %s, want trader %s", rec.SourceUserID, traderID)
		}
	}
	checks := []struct {
		user   uuid.UUID
		level  int
		amount string
	}{
		{traderID, 0, "10"},
		{a, 1, "30"},
		{b, 2, "3"},
		{c, 3, "2"},
	}
	for _, check := range checks {
		rec, ok := byUser[check.user]
		if !ok {
			t.Fatalf("missing record for level %d", check.level)
		}
		if rec.Level != check.level {
			t.Fatalf("level = %d, want %d", rec.Level, check.level)
		}
		if !rec.Amount.Equal(dec(check.amount)) {
			t.Fatalf("level %d amount = %s, want %s", check.level, rec.Amount, check.amount)
		}
	}
}

func TestComputeAccrualsKOLWithCustomLevel1(t *testing.T) {
	t.Parallel()

	kolID := uuid.New()
	kol := CommissionProfile{IsKOL: true, CustomRates: &CustomRates{Level1: decPtr("0.5")}}
	now := time.Now().UTC()

	// KOL at the root of the forest: direct commission only.
	records := ComputeAccruals(kolID, kol, nil, dec("100"), testSchedule(), "XP", "trade-2", now)
	if len(records) != 1 {
		t.Fatalf("records = %d, want cashback only", len(records))
	}
	if records[0].Level != 0 || !records[0].Amount.Equal(dec("50")) {
		t.Fatalf("kol cashback = level %d amount %s, want level 0 amount 50", records[0].Level, records[0].Amount)
	}
}

func TestComputeAccrualsKOLTraderSuppressesUpline(t *testing.T) {
	t.Parallel()

	kolID := uuid.New()
	parent := uuid.New()
	kol := CommissionProfile{IsKOL: true}
	ancestors := []AncestorProfile{{UserID: parent, Level: 1}}
	now := time.Now().UTC()

	records := ComputeAccruals(kolID, kol, ancestors, dec("100"), testSchedule(), "XP", "trade-3", now)
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1 (upline suppressed)", len(records))
	}
	if records[0].UserID != kolID || !records[0].Amount.Equal(dec("50")) {
		t.Fatalf("unexpected record: %+v", records[0])
	}
}

func TestComputeAccrualsWaivedTraderYieldsNothing(t *testing.T) {
	t.Parallel()

	records := ComputeAccruals(uuid.New(), CommissionProfile{HasWaivedFees: true},
		[]AncestorProfile{{UserID: uuid.New(), Level: 1}}, dec("100"), testSchedule(), "XP", "trade-4", time.Now().UTC())
	if records != nil {
		t.Fatalf("waived trader produced %d records, want none", len(records))
	}
}

func TestComputeAccrualsDropsZeroAmounts(t *testing.T) {
	t.Parallel()

	schedule := testSchedule()
	schedule.Level3 = decimal.Zero
	ancestors := []AncestorProfile{
		{UserID: uuid.New(), Level: 1},
		{UserID: uuid.New(), Level: 2},
		{UserID: uuid.New(), Level: 3},
	}
	records := ComputeAccruals(uuid.New(), CommissionProfile{}, ancestors, dec("100"), schedule, "XP", "trade-5", time.Now().UTC())
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3 with zero level 3 dropped", len(records))
	}
	for _, rec := range records {
		if rec.Level == 3 {
			t.Fatalf("zero-amount level 3 record was kept: %+v", rec)
		}
	}
}

func TestComputeAccrualsSumWithinRounding(t *testing.T) {
	t.Parallel()

	fee := dec("0.00000033")
	ancestors := []AncestorProfile{
		{UserID: uuid.New(), Level: 1},
		{UserID: uuid.New(), Level: 2},
		{UserID: uuid.New(), Level: 3},
	}
	schedule := testSchedule()
	records := ComputeAccruals(uuid.New(), CommissionProfile{}, ancestors, fee, schedule, "XP", "trade-6", time.Now().UTC())

	sum := decimal.Zero
	for _, rec := range records {
		if rec.Amount.Exponent() < -TokenScale {
			t.Fatalf("amount %s exceeds token scale", rec.Amount)
		}
		sum = sum.Add(rec.Amount)
	}
	exact := fee.Mul(schedule.Cashback.Add(schedule.Level1).Add(schedule.Level2).Add(schedule.Level3))
	tolerance := decimal.New(1, -TokenScale).Mul(decimal.NewFromInt(int64(len(records))))
	if sum.Sub(exact).Abs().GreaterThan(tolerance) {
		t.Fatalf("sum %s deviates from exact %s beyond tolerance %s", sum, exact, tolerance)
	}
}

func TestRoundAmountHalfEven(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"0.000000005", "0"},
		{"0.000000015", "0.00000002"},
		{"0.000000025", "0.00000002"},
		{"1.234567891", "1.23456789"},
	}
	for _, c := range cases {
		if got := RoundAmount(dec(c.in)); !got.Equal(dec(c.want)) {
			t.Fatalf("RoundAmount(%s) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestNewReferralCodeAlphabetAndLength(t *testing.T) {
	t.Parallel()

	code, err := NewReferralCode(6)
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("code length = %d, want 6", len(code))
	}
	for _, ch := range code {
		if !((ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')) {
			t.Fatalf("code %q contains invalid character %q", code, ch)
		}
	}
	if _, err := NewReferralCode(0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero length, got %v", err)
	}
}

func TestNormalizeReferralCode(t *testing.T) {
	t.Parallel()

	if got := NormalizeReferralCode("  ab12cd "); got != "AB12CD" {
		t.Fatalf("normalize = %q, want AB12CD", got)
	}
}
