package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/crucial707/logsink/internal/repo"
)

// AuditHandler serves the administrator audit trail.
type AuditHandler struct {
	Repo *repo.AuditRepo
}

// ListAudit returns recent audit entries. Query: limit (default 50, max 200), offset (default 0).
func (h *AuditHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	limit := 50
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 && val <= 200 {
			limit = val
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if val, err := strconv.Atoi(o); err == nil && val >= 0 {
			offset = val
		}
	}

	entries, err := h.Repo.List(r.Context(), limit, offset)
	if err != nil {
		slog.Error("list audit", "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}
