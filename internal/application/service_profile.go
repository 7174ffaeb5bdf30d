package application

import (
	"context"

	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/domain"
)

func (s *Service) GetCommissionProfile(ctx context.Context, userID uuid.UUID) (ProfileResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return ProfileResponse{}, err
	}
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return ProfileResponse{}, err
	}
	return ProfileResponse{
		UserID:            user.UserID,
		Name:              user.Name,
		CommissionProfile: toProfilePayload(profile),
	}, nil
}

// UpdateCommissionProfile applies a partial patch. Rate validation covers the
// whole patch before anything is written, and clearing the KOL flag discards
// custom rates since they are only meaningful for KOL users.
func (s *Service) UpdateCommissionProfile(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest) (ProfileResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return ProfileResponse{}, err
	}
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return ProfileResponse{}, err
	}

	if req.IsKOL != nil {
		profile.IsKOL = *req.IsKOL
	}
	if req.HasWaivedFees != nil {
		profile.HasWaivedFees = *req.HasWaivedFees
	}
	if req.CustomRatesPresent() {
		if err := req.CustomRates.Validate(); err != nil {
			return ProfileResponse{}, err
		}
		profile.CustomRates = req.CustomRates
	}
	if !profile.IsKOL || profile.CustomRates.IsEmpty() {
		profile.CustomRates = nil
	}

	profile.UserID = userID
	profile.UpdatedAt = s.nowFn()
	if err := s.profiles.Upsert(ctx, profile); err != nil {
		return ProfileResponse{}, err
	}

	return ProfileResponse{
		UserID:            user.UserID,
		Name:              user.Name,
		CommissionProfile: toProfilePayload(profile),
		Message:           "Commission profile updated successfully",
	}, nil
}

func toProfilePayload(p domain.CommissionProfile) ProfilePayload {
	payload := ProfilePayload{
		IsKOL:         p.IsKOL,
		HasWaivedFees: p.HasWaivedFees,
	}
	if !p.CustomRates.IsEmpty() {
		payload.CustomRates = p.CustomRates
	}
	return payload
}
