package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/application"
)

func (h *Handler) tradeWebhook(w http.ResponseWriter, r *http.Request) {
	var req application.TradeRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "trade_webhook", err)
		return
	}

	ack, err := h.service.IngestTrade(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "trade_webhook", err)
		return
	}
	// 202 reflects the asynchronous contract: accrual results are observable
	// via the job endpoint and the ledger, not this response.
	writeSuccess(w, http.StatusAccepted, ack)
}

func (h *Handler) tradeJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(chi.URLParam(r, "job_id"))
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "job_id is required")
		return
	}

	job, err := h.service.TradeJobStatus(r.Context(), jobID)
	if err != nil {
		writeMappedError(r.Context(), w, "trade_job_status", err)
		return
	}
	writeSuccess(w, http.StatusOK, job)
}
