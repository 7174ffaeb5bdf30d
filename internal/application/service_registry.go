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

// Register creates a user, optionally linked to the referrer that owns the
// supplied code. An unresolvable code is a soft failure by default: the user
// is still created, without a referrer, and the response says so. Strict mode
// turns that into a hard ErrInvalidReferralCode.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (RegisterResponse, error) {
	if err := domain.ValidateRegistrationInput(req.Name); err != nil {
		return RegisterResponse{}, err
	}
	name := strings.TrimSpace(req.Name)
	now := s.nowFn()

	var referrerID *uuid.UUID
	var referrerValidated *bool
	message := "User registered successfully"

	if code := domain.NormalizeReferralCode(req.ReferralCode); code != "" {
		referrer, err := s.users.GetByReferralCode(ctx, code)
		switch {
		case err == nil:
			referrerID = &referrer.UserID
			validated := true
			referrerValidated = &validated
		case errors.Is(err, domain.ErrNotFound):
			if s.cfg.StrictReferralCodes {
				return RegisterResponse{}, fmt.Errorf("%w: %s", domain.ErrInvalidReferralCode, code)
			}
			validated := false
			referrerValidated = &validated
			message = "User registered successfully; referral code was not recognized and no referrer was linked"
		default:
			return RegisterResponse{}, fmt.Errorf("resolve referral code: %w", err)
		}
	}

	payload, err := json.Marshal(map[string]any{
		"name":          name,
		"referrer_id":   referrerID,
		"registered_at": now,
	})
	if err != nil {
		return RegisterResponse{}, err
	}
	user, err := s.users.CreateWithOutboxTx(ctx, ports.CreateUserParams{
		Name:            name,
		ReferrerID:      referrerID,
		RegisteredAtUTC: now,
	}, ports.OutboxEvent{
		EventID:    uuid.New(),
		EventType:  domain.EventUserRegistered,
		Payload:    payload,
		OccurredAt: now,
	})
	if err != nil {
		return RegisterResponse{}, err
	}

	return RegisterResponse{
		UserID:            user.UserID,
		Message:           message,
		ReferrerValidated: referrerValidated,
	}, nil
}

// GenerateReferralCode issues a unique code for a user that has none yet.
// Collisions with existing codes are retried with a bounded budget; running
// out of attempts is fatal rather than silently looping.
func (s *Service) GenerateReferralCode(ctx context.Context, userID uuid.UUID) (GenerateCodeResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return GenerateCodeResponse{}, err
	}
	if user.ReferralCode != nil {
		return GenerateCodeResponse{}, domain.ErrAlreadyHasCode
	}

	now := s.nowFn()
	for attempt := 0; attempt < s.cfg.ReferralCodeAttempts; attempt++ {
		code, err := domain.NewReferralCode(s.cfg.ReferralCodeLength)
		if err != nil {
			return GenerateCodeResponse{}, err
		}
		payload, err := json.Marshal(map[string]any{
			"user_id":       userID,
			"referral_code": code,
			"issued_at":     now,
		})
		if err != nil {
			return GenerateCodeResponse{}, err
		}
		err = s.users.AssignCodeWithOutboxTx(ctx, userID, code, ports.OutboxEvent{
			EventID:      uuid.New(),
			EventType:    domain.EventReferralCodeIssued,
			PartitionKey: userID.String(),
			Payload:      payload,
			OccurredAt:   now,
		}, now)
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return GenerateCodeResponse{}, err
		}
		return GenerateCodeResponse{ReferralCode: code}, nil
	}
	return GenerateCodeResponse{}, domain.ErrCodeSpaceExhausted
}

func (s *Service) ListUsers(ctx context.Context, page, limit int) (UserListResponse, error) {
	page, limit = s.normalizePage(page, limit)
	users, total, err := s.users.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return UserListResponse{}, err
	}
	items := make([]UserItem, 0, len(users))
	for _, u := range users {
		items = append(items, toUserItem(u))
	}
	return UserListResponse{
		Data:       items,
		Pagination: paginationMeta(page, limit, total),
	}, nil
}

func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (UserItem, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return UserItem{}, err
	}
	return toUserItem(user), nil
}
