package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/application"
)

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req application.RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "register", err)
		return
	}

	res, err := h.service.Register(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "register", err)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

func (h *Handler) generateCode(w http.ResponseWriter, r *http.Request) {
	var req application.GenerateCodeRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "generate_referral_code", err)
		return
	}
	if req.UserID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "userId is required")
		return
	}

	res, err := h.service.GenerateReferralCode(r.Context(), req.UserID)
	if err != nil {
		writeMappedError(r.Context(), w, "generate_referral_code", err)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

func (h *Handler) network(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid userId")
		return
	}
	page := parseIntDefault(r.URL.Query().Get("page"), 1)
	limit := parseIntDefault(r.URL.Query().Get("limit"), 0)

	res, err := h.service.Network(r.Context(), userID, page, limit)
	if err != nil {
		writeMappedError(r.Context(), w, "referral_network", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) earnings(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid userId")
		return
	}
	from, err := parseDateParam(r.URL.Query().Get("startDate"))
	if err != nil {
		writeValidationError(r.Context(), w, "referral_earnings", err)
		return
	}
	to, err := parseDateParam(r.URL.Query().Get("endDate"))
	if err != nil {
		writeValidationError(r.Context(), w, "referral_earnings", err)
		return
	}

	res, err := h.service.Earnings(r.Context(), userID, from, to)
	if err != nil {
		writeMappedError(r.Context(), w, "referral_earnings", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) claim(w http.ResponseWriter, r *http.Request) {
	var req application.ClaimRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "claim_commission", err)
		return
	}

	res, err := h.service.Claim(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "claim_commission", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}
