package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/ports"
)

// TradeResult reports what one accrual run produced.
type TradeResult struct {
	TradeID   string
	Records   int
	Duplicate bool
}

// ProcessTrade runs the accrual engine for one trade event: cashback for the
// trader plus up to three upline commissions, written atomically with the
// processed-trade marker. Replays of the same trade id are acknowledged as
// duplicates without touching the ledger.
func (s *Service) ProcessTrade(ctx context.Context, ev domain.TradeEvent) (TradeResult, error) {
	if err := domain.ValidateTradeEvent(ev); err != nil {
		return TradeResult{}, err
	}
	if _, err := s.users.GetByID(ctx, ev.UserID); err != nil {
		return TradeResult{}, fmt.Errorf("load trader: %w", err)
	}
	traderProfile, err := s.profiles.Get(ctx, ev.UserID)
	if err != nil {
		return TradeResult{}, fmt.Errorf("load trader profile: %w", err)
	}

	now := s.nowFn()
	tradeType := strings.TrimSpace(ev.TradeType)
	if tradeType == "" {
		tradeType = domain.TradeTypeSpot
	}

	var records []domain.CommissionRecord
	if !traderProfile.HasWaivedFees {
		ancestors, err := s.ancestorProfiles(ctx, ev.UserID)
		if err != nil {
			return TradeResult{}, err
		}
		records = domain.ComputeAccruals(ev.UserID, traderProfile, ancestors, ev.Fee, s.cfg.Rates, s.cfg.Token, ev.TradeID, now)
	}

	payload, err := json.Marshal(map[string]any{
		"trade_id":     ev.TradeID,
		"user_id":      ev.UserID,
		"fee":          ev.Fee,
		"record_count": len(records),
		"processed_at": now,
	})
	if err != nil {
		return TradeResult{}, err
	}
	err = s.commissions.CreateTradeBatchTx(ctx, ports.ProcessedTrade{
		TradeID:     ev.TradeID,
		UserID:      ev.UserID,
		Volume:      ev.Volume,
		Fee:         ev.Fee,
		TradeType:   tradeType,
		ProcessedAt: now,
	}, records, ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    domain.EventCommissionAccrued,
		PartitionKey: ev.UserID.String(),
		Payload:      payload,
		OccurredAt:   now,
	})
	if errors.Is(err, domain.ErrDuplicateTrade) {
		return TradeResult{TradeID: ev.TradeID, Duplicate: true}, nil
	}
	if err != nil {
		return TradeResult{}, fmt.Errorf("persist accrual batch: %w", err)
	}
	return TradeResult{TradeID: ev.TradeID, Records: len(records)}, nil
}

func (s *Service) ancestorProfiles(ctx context.Context, userID uuid.UUID) ([]domain.AncestorProfile, error) {
	ancestors, err := s.Ancestors(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ancestors) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(ancestors))
	for _, a := range ancestors {
		ids = append(ids, a.UserID)
	}
	profiles, err := s.profiles.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load ancestor profiles: %w", err)
	}
	out := make([]domain.AncestorProfile, 0, len(ancestors))
	for i, a := range ancestors {
		out = append(out, domain.AncestorProfile{
			UserID:  a.UserID,
			Level:   i + 1,
			Profile: profiles[a.UserID],
		})
	}
	return out, nil
}

// IngestTrade is the webhook/simulation entry point. Validation errors reject
// the request; an accepted trade is acknowledged immediately and its outcome
// is tracked under the returned job id.
func (s *Service) IngestTrade(ctx context.Context, req TradeRequest) (TradeAck, error) {
	ev := domain.TradeEvent{
		TradeID:    "wh_" + uuid.NewString(),
		UserID:     req.UserID,
		Volume:     req.Volume,
		Fee:        req.Fee,
		TradeType:  req.TradeType,
		ReceivedAt: s.nowFn(),
	}
	if err := domain.ValidateTradeEvent(ev); err != nil {
		return TradeAck{}, err
	}
	if _, err := s.users.GetByID(ctx, req.UserID); err != nil {
		return TradeAck{}, err
	}

	job := ports.TradeJob{
		JobID:       uuid.NewString(),
		WebhookID:   ev.TradeID,
		TradeID:     ev.TradeID,
		UserID:      req.UserID,
		Status:      ports.TradeJobStatusProcessing,
		SubmittedAt: ev.ReceivedAt,
	}
	if err := s.tradeJobs.Put(ctx, job, s.cfg.TradeJobTTL); err != nil {
		return TradeAck{}, fmt.Errorf("record trade job: %w", err)
	}

	completed := s.nowFn()
	job.CompletedAt = &completed
	if _, err := s.ProcessTrade(ctx, ev); err != nil {
		job.Status = ports.TradeJobStatusFailed
		job.Error = err.Error()
		_ = s.tradeJobs.Put(ctx, job, s.cfg.TradeJobTTL)
		return TradeAck{}, err
	}
	job.Status = ports.TradeJobStatusDone
	if err := s.tradeJobs.Put(ctx, job, s.cfg.TradeJobTTL); err != nil {
		return TradeAck{}, fmt.Errorf("record trade job: %w", err)
	}

	return TradeAck{
		Message:                 "Trade accepted for commission processing",
		WebhookID:               job.WebhookID,
		JobID:                   job.JobID,
		EstimatedProcessingTime: s.cfg.EstimatedProcessing,
	}, nil
}

func (s *Service) TradeJobStatus(ctx context.Context, jobID string) (ports.TradeJob, error) {
	if strings.TrimSpace(jobID) == "" {
		return ports.TradeJob{}, fmt.Errorf("%w: job id is required", domain.ErrInvalidInput)
	}
	job, err := s.tradeJobs.Get(ctx, jobID)
	if err != nil {
		return ports.TradeJob{}, err
	}
	if job == nil {
		return ports.TradeJob{}, domain.ErrNotFound
	}
	return *job, nil
}
