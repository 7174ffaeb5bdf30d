package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/application"
)

func (h *Handler) getCommissionProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid user_id")
		return
	}

	res, err := h.service.GetCommissionProfile(r.Context(), userID)
	if err != nil {
		writeMappedError(r.Context(), w, "get_commission_profile", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) updateCommissionProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid user_id")
		return
	}
	var req application.UpdateProfileRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "update_commission_profile", err)
		return
	}

	res, err := h.service.UpdateCommissionProfile(r.Context(), userID, req)
	if err != nil {
		writeMappedError(r.Context(), w, "update_commission_profile", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}
