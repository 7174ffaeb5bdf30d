package application

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/ports"
)

// Claim settles either one commission or every unclaimed commission of the
// user. Settlement is per-record exclusive at the storage layer, so duplicate
// or racing requests never pay twice.
func (s *Service) Claim(ctx context.Context, req ClaimRequest) (ClaimResponse, error) {
	if req.UserID == uuid.Nil {
		return ClaimResponse{}, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	if req.ClaimAll == (req.ClaimID != nil) {
		return ClaimResponse{}, fmt.Errorf("%w: exactly one of claimId or claimAll is required", domain.ErrInvalidInput)
	}
	if _, err := s.users.GetByID(ctx, req.UserID); err != nil {
		return ClaimResponse{}, err
	}
	token := req.Token
	if token == "" {
		token = s.cfg.Token
	}

	if req.ClaimAll {
		return s.claimAll(ctx, req.UserID, token)
	}
	return s.claimOne(ctx, req.UserID, *req.ClaimID, token)
}

func (s *Service) claimOne(ctx context.Context, userID, commissionID uuid.UUID, token string) (ClaimResponse, error) {
	now := s.nowFn()
	record, err := s.commissions.ClaimOne(ctx, userID, commissionID, now)
	if err != nil {
		return ClaimResponse{}, err
	}
	s.enqueueClaimEvent(ctx, userID, record.Amount.String(), token, 1, &commissionID)

	id := record.CommissionID
	return ClaimResponse{
		Success:      true,
		Claimed:      money(record.Amount),
		Token:        record.Token,
		CommissionID: &id,
	}, nil
}

// claimAll settles every unclaimed record of the user, whatever token each
// was minted in; the token argument only labels the response and the event.
func (s *Service) claimAll(ctx context.Context, userID uuid.UUID, token string) (ClaimResponse, error) {
	now := s.nowFn()
	result, err := s.commissions.ClaimAll(ctx, userID, now)
	if err != nil {
		return ClaimResponse{}, err
	}
	if result.Count > 0 {
		s.enqueueClaimEvent(ctx, userID, result.Settled.String(), token, result.Count, nil)
	}

	count := result.Count
	return ClaimResponse{
		Success:            true,
		Claimed:            money(result.Settled),
		Token:              token,
		CommissionsClaimed: &count,
	}, nil
}

// enqueueClaimEvent is best effort: settlement has already committed, and the
// claimed flags in the ledger remain the source of truth for reconciliation.
func (s *Service) enqueueClaimEvent(ctx context.Context, userID uuid.UUID, amount, token string, count int, commissionID *uuid.UUID) {
	now := s.nowFn()
	payload, err := json.Marshal(map[string]any{
		"user_id":       userID,
		"amount":        amount,
		"token":         token,
		"count":         count,
		"commission_id": commissionID,
		"claimed_at":    now,
	})
	if err != nil {
		return
	}
	_ = s.outbox.Enqueue(ctx, ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    domain.EventCommissionClaimed,
		PartitionKey: userID.String(),
		Payload:      payload,
		OccurredAt:   now,
	})
}
