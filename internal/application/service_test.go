package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/ports"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func defaultTestConfig() application.Config {
	return application.Config{
		Token: "XP",
		Rates: domain.RateSchedule{
			Cashback:  dec("0.10"),
			Level1:    dec("0.30"),
			Level2:    dec("0.03"),
			Level3:    dec("0.02"),
			KOLDirect: dec("0.50"),
		},
		ReferralCodeLength:   6,
		ReferralCodeAttempts: 5,
		DefaultPageLimit:     20,
		MaxPageLimit:         100,
	}
}

func TestRegisterWithValidReferralCode(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	referrer := f.seedUser(t, "Referrer", nil)
	code := f.assignCode(t, referrer, "REF123")

	res, err := f.service.Register(ctx, application.RegisterRequest{Name: "Alice", ReferralCode: code})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if res.ReferrerValidated == nil || !*res.ReferrerValidated {
		t.Fatalf("expected validated referrer, got %+v", res.ReferrerValidated)
	}
	created, err := f.service.GetUser(ctx, res.UserID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if created.ReferrerID == nil || *created.ReferrerID != referrer {
		t.Fatalf("referrer link = %v, want %s", created.ReferrerID, referrer)
	}
	parent, _ := f.service.GetUser(ctx, referrer)
	if parent.Count.Referrals != 1 {
		t.Fatalf("referrer referral count = %d, want 1", parent.Count.Referrals)
	}
}

func TestRegisterUnknownCodeSoftFails(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	res, err := f.service.Register(ctx, application.RegisterRequest{Name: "Bob", ReferralCode: "NOSUCH"})
	if err != nil {
		t.Fatalf("register should soft-fail, got %v", err)
	}
	if res.ReferrerValidated == nil || *res.ReferrerValidated {
		t.Fatalf("expected referrerValidated=false, got %+v", res.ReferrerValidated)
	}
	created, _ := f.service.GetUser(ctx, res.UserID)
	if created.ReferrerID != nil {
		t.Fatalf("unknown code must not link a referrer")
	}
}

func TestRegisterUnknownCodeStrictMode(t *testing.T) {
	t.Parallel()

	cfg := defaultTestConfig()
	cfg.StrictReferralCodes = true
	f := newFixtureWithConfig(cfg)

	_, err := f.service.Register(context.Background(), application.RegisterRequest{Name: "Bob", ReferralCode: "NOSUCH"})
	if !errors.Is(err, domain.ErrInvalidReferralCode) {
		t.Fatalf("expected ErrInvalidReferralCode in strict mode, got %v", err)
	}
}

func TestRegisterRequiresName(t *testing.T) {
	t.Parallel()

	f := newFixture()
	_, err := f.service.Register(context.Background(), application.RegisterRequest{Name: "   "})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGenerateReferralCode(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	userID := f.seedUser(t, "Carol", nil)

	res, err := f.service.GenerateReferralCode(ctx, userID)
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	if len(res.ReferralCode) != 6 {
		t.Fatalf("code length = %d, want 6", len(res.ReferralCode))
	}
	if _, err := f.service.GenerateReferralCode(ctx, userID); !errors.Is(err, domain.ErrAlreadyHasCode) {
		t.Fatalf("second generate should fail with ErrAlreadyHasCode, got %v", err)
	}
	// The issuance event travels inside the assignment, not as a separate
	// enqueue that could be lost after the code commits.
	found := false
	for _, ev := range f.users.events {
		if ev.EventType == domain.EventReferralCodeIssued {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected referral code issued event written with the assignment")
	}
	if len(f.outbox.events) != 0 {
		t.Fatalf("issuance must not enqueue outside the assignment transaction: %v", f.outbox.events)
	}
}

func TestGenerateReferralCodeExhaustsAttempts(t *testing.T) {
	t.Parallel()

	f := newFixture()
	userID := f.seedUser(t, "Dave", nil)
	f.users.assignErr = domain.ErrConflict

	_, err := f.service.GenerateReferralCode(context.Background(), userID)
	if !errors.Is(err, domain.ErrCodeSpaceExhausted) {
		t.Fatalf("expected ErrCodeSpaceExhausted, got %v", err)
	}
	if len(f.users.events) != 0 {
		t.Fatalf("failed issuance must not record events: %v", f.users.events)
	}
}

func TestAncestorsBoundedAtThreeLevels(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	// Chain of five: e -> d -> c -> b -> a.
	a := f.seedUser(t, "A", nil)
	b := f.seedUser(t, "B", &a)
	c := f.seedUser(t, "C", &b)
	d := f.seedUser(t, "D", &c)
	e := f.seedUser(t, "E", &d)

	ancestors, err := f.service.Ancestors(ctx, e)
	if err != nil {
		t.Fatalf("ancestors: %v", err)
	}
	if len(ancestors) != domain.MaxNetworkDepth {
		t.Fatalf("ancestors = %d, want %d", len(ancestors), domain.MaxNetworkDepth)
	}
	want := []uuid.UUID{d, c, b}
	for i, u := range ancestors {
		if u.UserID != want[i] {
			t.Fatalf("ancestor %d = %s, want %s", i, u.UserID, want[i])
		}
	}
}

func TestNetworkLevelsAndPagination(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	root := f.seedUser(t, "Root", nil)
	var level1 []uuid.UUID
	for i := 0; i < 3; i++ {
		level1 = append(level1, f.seedUser(t, "L1", &root))
	}
	var level2 []uuid.UUID
	for _, parent := range level1 {
		p := parent
		level2 = append(level2, f.seedUser(t, "L2", &p))
	}
	for _, parent := range level2 {
		p := parent
		f.seedUser(t, "L3", &p)
	}
	// Level 4 descendants exist in the forest but are outside the network view.
	deep := level2[0]
	grandchild := f.seedUser(t, "L3b", &deep)
	f.seedUser(t, "L4", &grandchild)

	res, err := f.service.Network(ctx, root, 1, 100)
	if err != nil {
		t.Fatalf("network: %v", err)
	}
	if res.Stats.Level1Count != 3 || res.Stats.Level2Count != 3 || res.Stats.Level3Count != 4 {
		t.Fatalf("per-level counts = %d/%d/%d, want 3/3/4",
			res.Stats.Level1Count, res.Stats.Level2Count, res.Stats.Level3Count)
	}
	if res.Stats.TotalReferrals != 10 {
		t.Fatalf("total referrals = %d, want 10", res.Stats.TotalReferrals)
	}

	page1, err := f.service.Network(ctx, root, 1, 4)
	if err != nil {
		t.Fatalf("network page 1: %v", err)
	}
	page2, err := f.service.Network(ctx, root, 2, 4)
	if err != nil {
		t.Fatalf("network page 2: %v", err)
	}
	if len(page1.Network) != 4 || len(page2.Network) != 4 {
		t.Fatalf("page sizes = %d/%d, want 4/4", len(page1.Network), len(page2.Network))
	}
	if !page1.Pagination.HasNext || page1.Pagination.HasPrev {
		t.Fatalf("page 1 pagination flags wrong: %+v", page1.Pagination)
	}
	seen := map[uuid.UUID]bool{}
	for _, u := range append(page1.Network, page2.Network...) {
		if seen[u.ID] {
			t.Fatalf("user %s appears on two pages", u.ID)
		}
		seen[u.ID] = true
	}
	// New registrations only ever append, so page 1 is unchanged.
	extra := level1[0]
	f.seedUser(t, "Late", &extra)
	again, err := f.service.Network(ctx, root, 1, 4)
	if err != nil {
		t.Fatalf("network after growth: %v", err)
	}
	for i := range page1.Network {
		if again.Network[i].ID != page1.Network[i].ID {
			t.Fatalf("page 1 shifted after new registration")
		}
	}
}

func TestProcessTradeAccruesFullChain(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	a := f.seedUser(t, "A", nil)
	b := f.seedUser(t, "B", &a)

	result, err := f.service.ProcessTrade(ctx, domain.TradeEvent{
		TradeID: "t-1", UserID: b, Volume: dec("1000"), Fee: dec("100"),
	})
	if err != nil {
		t.Fatalf("process trade: %v", err)
	}
	if result.Duplicate || result.Records != 2 {
		t.Fatalf("result = %+v, want 2 records", result)
	}

	recs := f.commissions.recordsFor(b)
	if len(recs) != 1 || !recs[0].Amount.Equal(dec("10")) || recs[0].Level != 0 {
		t.Fatalf("trader cashback wrong: %+v", recs)
	}
	recs = f.commissions.recordsFor(a)
	if len(recs) != 1 || !recs[0].Amount.Equal(dec("30")) || recs[0].Level != 1 {
		t.Fatalf("level 1 commission wrong: %+v", recs)
	}
}

func TestProcessTradeReplayIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	userID := f.seedUser(t, "Solo", nil)

	ev := domain.TradeEvent{TradeID: "t-dup", UserID: userID, Volume: dec("10"), Fee: dec("1")}
	if _, err := f.service.ProcessTrade(ctx, ev); err != nil {
		t.Fatalf("first process: %v", err)
	}
	result, err := f.service.ProcessTrade(ctx, ev)
	if err != nil {
		t.Fatalf("replay should succeed as duplicate: %v", err)
	}
	if !result.Duplicate {
		t.Fatalf("expected duplicate flag on replay")
	}
	if got := len(f.commissions.recordsFor(userID)); got != 1 {
		t.Fatalf("duplicate replay wrote records: %d", got)
	}
}

func TestProcessTradeWaivedTraderMarksProcessed(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	parent := f.seedUser(t, "P", nil)
	trader := f.seedUser(t, "Waived", &parent)
	f.setProfile(t, domain.CommissionProfile{UserID: trader, HasWaivedFees: true})

	result, err := f.service.ProcessTrade(ctx, domain.TradeEvent{
		TradeID: "t-w", UserID: trader, Volume: dec("10"), Fee: dec("5"),
	})
	if err != nil {
		t.Fatalf("process trade: %v", err)
	}
	if result.Records != 0 {
		t.Fatalf("waived trade produced %d records", result.Records)
	}
	if len(f.commissions.recordsFor(parent)) != 0 {
		t.Fatalf("waived trade paid the upline")
	}
	// The marker still lands, so a replay is a duplicate.
	replay, err := f.service.ProcessTrade(ctx, domain.TradeEvent{
		TradeID: "t-w", UserID: trader, Volume: dec("10"), Fee: dec("5"),
	})
	if err != nil || !replay.Duplicate {
		t.Fatalf("expected duplicate replay, got %+v err %v", replay, err)
	}
}

func TestProcessTradeRejectsInvalidEvent(t *testing.T) {
	t.Parallel()

	f := newFixture()
	userID := f.seedUser(t, "T", nil)
	_, err := f.service.ProcessTrade(context.Background(), domain.TradeEvent{
		TradeID: "t-bad", UserID: userID, Volume: dec("10"), Fee: dec("-1"),
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for negative fee, got %v", err)
	}
}

func TestEarningsPartitionsCashbackFromReferral(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	a := f.seedUser(t, "A", nil)
	b := f.seedUser(t, "B", &a)
	c := f.seedUser(t, "C", &b)

	// C trades: A earns level 2, B level 1, C cashback.
	if _, err := f.service.ProcessTrade(ctx, domain.TradeEvent{
		TradeID: "e-1", UserID: c, Volume: dec("1000"), Fee: dec("100"),
	}); err != nil {
		t.Fatalf("trade 1: %v", err)
	}
	// B trades: A earns level 1, B cashback.
	if _, err := f.service.ProcessTrade(ctx, domain.TradeEvent{
		TradeID: "e-2", UserID: b, Volume: dec("1000"), Fee: dec("100"),
	}); err != nil {
		t.Fatalf("trade 2: %v", err)
	}

	res, err := f.service.Earnings(ctx, a, nil, nil)
	if err != nil {
		t.Fatalf("earnings: %v", err)
	}
	if res.Summary.TotalEarnings != "33" {
		t.Fatalf("total referral earnings = %s, want 33", res.Summary.TotalEarnings)
	}
	if res.Summary.Cashback.Count != 0 {
		t.Fatalf("a has no cashback, got %+v", res.Summary.Cashback)
	}
	if res.Summary.LevelBreakdown["1"].Total != "30" || res.Summary.LevelBreakdown["2"].Total != "3" {
		t.Fatalf("level breakdown wrong: %+v", res.Summary.LevelBreakdown)
	}
	if res.Summary.TotalReferredUsers != 2 {
		t.Fatalf("referred users = %d, want 2", res.Summary.TotalReferredUsers)
	}

	bRes, err := f.service.Earnings(ctx, b, nil, nil)
	if err != nil {
		t.Fatalf("earnings b: %v", err)
	}
	if bRes.Summary.Cashback.Total != "10" {
		t.Fatalf("b cashback = %s, want 10", bRes.Summary.Cashback.Total)
	}
	if bRes.Summary.TotalEarnings != "30" {
		t.Fatalf("b referral total = %s, want 30", bRes.Summary.TotalEarnings)
	}
	if bRes.Summary.CombinedTotal != "40" {
		t.Fatalf("b combined = %s, want 40", bRes.Summary.CombinedTotal)
	}
	if len(bRes.Earnings) == 0 || bRes.Earnings[0].ReferredUser.ID != b {
		t.Fatalf("self cashback should sort first: %+v", bRes.Earnings)
	}
}

func TestClaimOneIsExclusive(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	a := f.seedUser(t, "A", nil)
	b := f.seedUser(t, "B", &a)
	if _, err := f.service.ProcessTrade(ctx, domain.TradeEvent{
		TradeID: "c-1", UserID: b, Volume: dec("100"), Fee: dec("100"),
	}); err != nil {
		t.Fatalf("trade: %v", err)
	}
	recs := f.commissions.recordsFor(a)
	if len(recs) != 1 {
		t.Fatalf("setup: expected one commission for a")
	}
	claimID := recs[0].CommissionID

	res, err := f.service.Claim(ctx, application.ClaimRequest{UserID: a, ClaimID: &claimID})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !res.Success || res.Claimed != "30" {
		t.Fatalf("claim result = %+v, want claimed 30", res)
	}
	if _, err := f.service.Claim(ctx, application.ClaimRequest{UserID: a, ClaimID: &claimID}); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Fatalf("second claim should fail with ErrAlreadyClaimed, got %v", err)
	}
}

func TestClaimRejectsForeignCommission(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	a := f.seedUser(t, "A", nil)
	b := f.seedUser(t, "B", &a)
	if _, err := f.service.ProcessTrade(ctx, domain.TradeEvent{
		TradeID: "c-f", UserID: b, Volume: dec("100"), Fee: dec("100"),
	}); err != nil {
		t.Fatalf("trade: %v", err)
	}
	claimID := f.commissions.recordsFor(a)[0].CommissionID

	if _, err := f.service.Claim(ctx, application.ClaimRequest{UserID: b, ClaimID: &claimID}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("claiming another user's commission should be ErrNotFound, got %v", err)
	}
}

func TestClaimAllDrainsUnclaimed(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	a := f.seedUser(t, "A", nil)
	b := f.seedUser(t, "B", &a)
	for _, tradeID := range []string{"ca-1", "ca-2", "ca-3"} {
		if _, err := f.service.ProcessTrade(ctx, domain.TradeEvent{
			TradeID: tradeID, UserID: b, Volume: dec("100"), Fee: dec("100"),
		}); err != nil {
			t.Fatalf("trade %s: %v", tradeID, err)
		}
	}

	res, err := f.service.Claim(ctx, application.ClaimRequest{UserID: a, ClaimAll: true})
	if err != nil {
		t.Fatalf("claim all: %v", err)
	}
	if res.CommissionsClaimed == nil || *res.CommissionsClaimed != 3 || res.Claimed != "90" {
		t.Fatalf("claim all result = %+v, want 3 commissions totalling 90", res)
	}

	again, err := f.service.Claim(ctx, application.ClaimRequest{UserID: a, ClaimAll: true})
	if err != nil {
		t.Fatalf("second claim all: %v", err)
	}
	if *again.CommissionsClaimed != 0 || again.Claimed != "0" {
		t.Fatalf("drained ledger should claim nothing, got %+v", again)
	}
}

func TestClaimAllSettlesAcrossTokens(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	a := f.seedUser(t, "A", nil)
	b := f.seedUser(t, "B", &a)
	if _, err := f.service.ProcessTrade(ctx, domain.TradeEvent{
		TradeID: "ct-1", UserID: b, Volume: dec("100"), Fee: dec("100"),
	}); err != nil {
		t.Fatalf("trade: %v", err)
	}
	// A record minted before a token reconfiguration must still settle.
	f.commissions.mu.Lock()
	f.commissions.records = append(f.commissions.records, domain.CommissionRecord{
		CommissionID: uuid.New(),
		UserID:       a,
		SourceUserID: b,
		TradeID:      "legacy-1",
		Level:        1,
		Token:        "LEGACY",
		Amount:       dec("5"),
		CreatedAt:    time.Now().UTC(),
	})
	f.commissions.mu.Unlock()

	res, err := f.service.Claim(ctx, application.ClaimRequest{UserID: a, ClaimAll: true})
	if err != nil {
		t.Fatalf("claim all: %v", err)
	}
	if res.CommissionsClaimed == nil || *res.CommissionsClaimed != 2 || res.Claimed != "35" {
		t.Fatalf("claim all should settle both tokens, got %+v", res)
	}
}

func TestClaimRequiresExactlyOneMode(t *testing.T) {
	t.Parallel()

	f := newFixture()
	userID := f.seedUser(t, "A", nil)
	id := uuid.New()

	if _, err := f.service.Claim(context.Background(), application.ClaimRequest{UserID: userID}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("neither mode should be rejected, got %v", err)
	}
	if _, err := f.service.Claim(context.Background(), application.ClaimRequest{UserID: userID, ClaimID: &id, ClaimAll: true}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("both modes should be rejected, got %v", err)
	}
}

func TestUpdateProfileRejectsBadRatesAtomically(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	userID := f.seedUser(t, "K", nil)

	_, err := f.service.UpdateCommissionProfile(ctx, userID, updateProfileRequest(t,
		`{"isKOL": true, "customRates": {"level1": "0.4", "level2": null, "level3": "1.5"}}`))
	if !errors.Is(err, domain.ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate, got %v", err)
	}

	profile, err := f.service.GetCommissionProfile(ctx, userID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile.CommissionProfile.IsKOL || profile.CommissionProfile.CustomRates != nil {
		t.Fatalf("rejected patch must not partially apply: %+v", profile.CommissionProfile)
	}
}

func TestUpdateProfileClearsRatesForNonKOL(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	userID := f.seedUser(t, "K", nil)

	if _, err := f.service.UpdateCommissionProfile(ctx, userID, updateProfileRequest(t,
		`{"isKOL": true, "customRates": {"level1": "0.45"}}`)); err != nil {
		t.Fatalf("set kol profile: %v", err)
	}
	res, err := f.service.UpdateCommissionProfile(ctx, userID, updateProfileRequest(t, `{"isKOL": false}`))
	if err != nil {
		t.Fatalf("clear kol: %v", err)
	}
	if res.CommissionProfile.IsKOL || res.CommissionProfile.CustomRates != nil {
		t.Fatalf("clearing KOL must discard custom rates: %+v", res.CommissionProfile)
	}
}

func TestIngestTradeTracksJob(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	userID := f.seedUser(t, "W", nil)

	ack, err := f.service.IngestTrade(ctx, application.TradeRequest{
		UserID: userID, Volume: dec("100"), Fee: dec("10"),
	})
	if err != nil {
		t.Fatalf("ingest trade: %v", err)
	}
	if ack.JobID == "" || ack.WebhookID == "" {
		t.Fatalf("ack missing identifiers: %+v", ack)
	}

	job, err := f.service.TradeJobStatus(ctx, ack.JobID)
	if err != nil {
		t.Fatalf("job status: %v", err)
	}
	if job.Status != ports.TradeJobStatusDone {
		t.Fatalf("job status = %s, want done", job.Status)
	}
	if _, err := f.service.TradeJobStatus(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing job should be ErrNotFound, got %v", err)
	}
}

func TestListUsersPagination(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		f.seedUser(t, "U", nil)
	}

	res, err := f.service.ListUsers(ctx, 2, 2)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(res.Data) != 2 || res.Pagination.Total != 5 || res.Pagination.Pages != 3 {
		t.Fatalf("pagination = %+v with %d items", res.Pagination, len(res.Data))
	}
	if !res.Pagination.HasNext || !res.Pagination.HasPrev {
		t.Fatalf("middle page flags wrong: %+v", res.Pagination)
	}
}

// --- fixture ---

type fixture struct {
	service     *application.Service
	users       *fakeUsers
	profiles    *fakeProfiles
	commissions *fakeCommissions
	outbox      *fakeOutbox
	jobs        *fakeJobs
}

func newFixture() *fixture {
	return newFixtureWithConfig(defaultTestConfig())
}

func newFixtureWithConfig(cfg application.Config) *fixture {
	users := &fakeUsers{byID: map[uuid.UUID]*domain.User{}, byCode: map[string]uuid.UUID{}}
	profiles := &fakeProfiles{users: users, byID: map[uuid.UUID]domain.CommissionProfile{}}
	commissions := &fakeCommissions{users: users, processed: map[string]bool{}}
	outbox := &fakeOutbox{}
	jobs := &fakeJobs{byID: map[string]ports.TradeJob{}}

	svc := application.NewService(application.Dependencies{
		Config:      cfg,
		Users:       users,
		Profiles:    profiles,
		Commissions: commissions,
		Outbox:      outbox,
		TradeJobs:   jobs,
	})
	return &fixture{
		service:     svc,
		users:       users,
		profiles:    profiles,
		commissions: commissions,
		outbox:      outbox,
		jobs:        jobs,
	}
}

func (f *fixture) seedUser(t *testing.T, name string, referrerID *uuid.UUID) uuid.UUID {
	t.Helper()
	user, err := f.users.CreateWithOutboxTx(context.Background(), ports.CreateUserParams{
		Name:            name,
		ReferrerID:      referrerID,
		RegisteredAtUTC: time.Now().UTC(),
	}, ports.OutboxEvent{EventID: uuid.New(), EventType: domain.EventUserRegistered})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user.UserID
}

func (f *fixture) assignCode(t *testing.T, userID uuid.UUID, code string) string {
	t.Helper()
	err := f.users.AssignCodeWithOutboxTx(context.Background(), userID, code,
		ports.OutboxEvent{EventID: uuid.New(), EventType: domain.EventReferralCodeIssued}, time.Now().UTC())
	if err != nil {
		t.Fatalf("assign code: %v", err)
	}
	return code
}

func (f *fixture) setProfile(t *testing.T, profile domain.CommissionProfile) {
	t.Helper()
	if err := f.profiles.Upsert(context.Background(), profile); err != nil {
		t.Fatalf("set profile: %v", err)
	}
}

func updateProfileRequest(t *testing.T, raw string) application.UpdateProfileRequest {
	t.Helper()
	var req application.UpdateProfileRequest
	if err := req.UnmarshalJSON([]byte(raw)); err != nil {
		t.Fatalf("decode patch: %v", err)
	}
	return req
}

// --- fakes ---

type fakeUsers struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]*domain.User
	byCode    map[string]uuid.UUID
	order     []uuid.UUID
	events    []ports.OutboxEvent
	assignErr error
}

func (f *fakeUsers) CreateWithOutboxTx(_ context.Context, params ports.CreateUserParams, outboxEvent ports.OutboxEvent) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := domain.User{
		UserID:     uuid.New(),
		Name:       params.Name,
		ReferrerID: params.ReferrerID,
		CreatedAt:  params.RegisteredAtUTC,
	}
	if params.ReferrerID != nil {
		parent, ok := f.byID[*params.ReferrerID]
		if !ok {
			return domain.User{}, domain.ErrNotFound
		}
		parent.ReferralCount++
	}
	f.byID[u.UserID] = &u
	f.order = append(f.order, u.UserID)
	f.events = append(f.events, outboxEvent)
	return u, nil
}

func (f *fakeUsers) GetByID(_ context.Context, userID uuid.UUID) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return *u, nil
}

func (f *fakeUsers) GetByReferralCode(_ context.Context, code string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byCode[code]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return *f.byID[id], nil
}

func (f *fakeUsers) List(_ context.Context, limit, offset int) ([]domain.User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := len(f.order)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	out := make([]domain.User, 0, end-offset)
	for _, id := range f.order[offset:end] {
		out = append(out, *f.byID[id])
	}
	return out, total, nil
}

func (f *fakeUsers) AssignCodeWithOutboxTx(_ context.Context, userID uuid.UUID, code string, outboxEvent ports.OutboxEvent, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.assignErr != nil {
		return f.assignErr
	}
	u, ok := f.byID[userID]
	if !ok {
		return domain.ErrNotFound
	}
	if u.ReferralCode != nil {
		return domain.ErrAlreadyHasCode
	}
	if _, taken := f.byCode[code]; taken {
		return domain.ErrConflict
	}
	u.ReferralCode = &code
	f.byCode[code] = userID
	f.events = append(f.events, outboxEvent)
	return nil
}

func (f *fakeUsers) ListChildIDs(_ context.Context, parentIDs []uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	parents := map[uuid.UUID]bool{}
	for _, id := range parentIDs {
		parents[id] = true
	}
	var out []uuid.UUID
	for _, id := range f.order {
		u := f.byID[id]
		if u.ReferrerID != nil && parents[*u.ReferrerID] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeUsers) GetMany(_ context.Context, ids []uuid.UUID) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := f.byID[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

type fakeProfiles struct {
	mu    sync.Mutex
	users *fakeUsers
	byID  map[uuid.UUID]domain.CommissionProfile
}

func (f *fakeProfiles) Get(_ context.Context, userID uuid.UUID) (domain.CommissionProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.byID[userID]; ok {
		return p, nil
	}
	return domain.CommissionProfile{UserID: userID}, nil
}

func (f *fakeProfiles) GetMany(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.CommissionProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uuid.UUID]domain.CommissionProfile, len(ids))
	for _, id := range ids {
		if p, ok := f.byID[id]; ok {
			out[id] = p
			continue
		}
		out[id] = domain.CommissionProfile{UserID: id}
	}
	return out, nil
}

func (f *fakeProfiles) Upsert(_ context.Context, profile domain.CommissionProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[profile.UserID] = profile
	f.users.mu.Lock()
	if u, ok := f.users.byID[profile.UserID]; ok {
		u.IsKOL = profile.IsKOL
		u.HasWaivedFees = profile.HasWaivedFees
	}
	f.users.mu.Unlock()
	return nil
}

type fakeCommissions struct {
	mu        sync.Mutex
	users     *fakeUsers
	records   []domain.CommissionRecord
	processed map[string]bool
	events    []ports.OutboxEvent
}

func (f *fakeCommissions) CreateTradeBatchTx(_ context.Context, trade ports.ProcessedTrade, records []domain.CommissionRecord, outboxEvent ports.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.processed[trade.TradeID] {
		return domain.ErrDuplicateTrade
	}
	f.processed[trade.TradeID] = true
	f.records = append(f.records, records...)
	f.events = append(f.events, outboxEvent)
	f.users.mu.Lock()
	for _, rec := range records {
		if u, ok := f.users.byID[rec.UserID]; ok {
			u.CommissionCount++
		}
	}
	f.users.mu.Unlock()
	return nil
}

func (f *fakeCommissions) ListByUser(_ context.Context, userID uuid.UUID, from, to *time.Time) ([]domain.CommissionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.CommissionRecord
	for _, rec := range f.records {
		if rec.UserID != userID {
			continue
		}
		if from != nil && rec.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && rec.CreatedAt.After(*to) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeCommissions) ClaimOne(_ context.Context, userID, commissionID uuid.UUID, _ time.Time) (domain.CommissionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, rec := range f.records {
		if rec.CommissionID != commissionID || rec.UserID != userID {
			continue
		}
		if rec.Claimed {
			return domain.CommissionRecord{}, domain.ErrAlreadyClaimed
		}
		f.records[i].Claimed = true
		return f.records[i], nil
	}
	return domain.CommissionRecord{}, domain.ErrNotFound
}

func (f *fakeCommissions) ClaimAll(_ context.Context, userID uuid.UUID, _ time.Time) (ports.ClaimAllResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := ports.ClaimAllResult{Settled: decimal.Zero}
	for i, rec := range f.records {
		if rec.UserID != userID || rec.Claimed {
			continue
		}
		f.records[i].Claimed = true
		result.Settled = result.Settled.Add(rec.Amount)
		result.Count++
	}
	return result, nil
}

func (f *fakeCommissions) recordsFor(userID uuid.UUID) []domain.CommissionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.CommissionRecord
	for _, rec := range f.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out
}

type fakeOutbox struct {
	mu     sync.Mutex
	events []ports.OutboxEvent
}

func (f *fakeOutbox) Enqueue(_ context.Context, event ports.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutbox) ClaimUnpublished(context.Context, int, string, time.Time) ([]ports.OutboxRecord, error) {
	return nil, nil
}
func (f *fakeOutbox) MarkPublished(context.Context, uuid.UUID, string, time.Time) error { return nil }
func (f *fakeOutbox) MarkFailed(context.Context, uuid.UUID, string, string, time.Time) error {
	return nil
}
func (f *fakeOutbox) MarkDeadLettered(context.Context, uuid.UUID, string, string, time.Time) error {
	return nil
}

type fakeJobs struct {
	mu   sync.Mutex
	byID map[string]ports.TradeJob
}

func (f *fakeJobs) Put(_ context.Context, job ports.TradeJob, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[job.JobID] = job
	return nil
}

func (f *fakeJobs) Get(_ context.Context, jobID string) (*ports.TradeJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job, ok := f.byID[jobID]; ok {
		return &job, nil
	}
	return nil, nil
}
