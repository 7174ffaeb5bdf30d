package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	page := parseIntDefault(r.URL.Query().Get("page"), 1)
	limit := parseIntDefault(r.URL.Query().Get("limit"), 0)

	res, err := h.service.ListUsers(r.Context(), page, limit)
	if err != nil {
		writeMappedError(r.Context(), w, "list_users", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid user_id")
		return
	}

	res, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		writeMappedError(r.Context(), w, "get_user", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}
