package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/crucial707/logsink/internal/metrics"
	"github.com/crucial707/logsink/internal/middleware"
	"github.com/crucial707/logsink/internal/models"
	"github.com/crucial707/logsink/internal/repo"
)

const (
	defaultLogLimit = 100
	maxLogLimit     = 1000
)

type LogHandler struct {
	Repo      *repo.LogRepo
	AuditRepo *repo.AuditRepo

	// EmptyResultNotFound answers 404 when a severity query matches nothing.
	EmptyResultNotFound bool
}

// logBody uses pointers so a missing field is told apart from an empty string.
type logBody struct {
	Domain      *string `json:"domain" validate:"required,max=255,nonul"`
	IPAddress   *string `json:"ip_address" validate:"required,max=64,nonul"`
	ServiceName *string `json:"service_name" validate:"required,max=255,nonul"`
	Message     *string `json:"message" validate:"required,nonul"`
	Severity    *string `json:"severity" validate:"required,max=64,nonul"`
}

func (b logBody) input() models.LogInput {
	return models.LogInput{
		Domain:      *b.Domain,
		IPAddress:   *b.IPAddress,
		ServiceName: *b.ServiceName,
		Message:     *b.Message,
		Severity:    *b.Severity,
	}
}

//
// ==========================
// Create Log
// ==========================
//

func (h *LogHandler) CreateLog(w http.ResponseWriter, r *http.Request) {
	var body logBody
	if !decodeAndValidate(w, r, &body) {
		return
	}

	rec, err := h.Repo.Create(r.Context(), body.input())
	if err != nil {
		slog.Error("create log", "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	metrics.IncLogsIngested()
	writeJSON(w, http.StatusCreated, rec)
}

//
// ==========================
// List Logs
// ==========================
//

// ListLogs returns all records, or those matching ?severity= when given.
func (h *LogHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	if severity := r.URL.Query().Get("severity"); severity != "" {
		h.listBySeverity(w, r, severity)
		return
	}

	limit, offset := pagination(r)
	logs, err := h.Repo.List(r.Context(), limit, offset)
	if err != nil {
		slog.Error("list logs", "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, logs)
}

//
// ==========================
// Get Log By ID or Severity
// ==========================
//

// GetLogs serves GET /logs/{ref}: an integer ref is a record id, anything else a severity.
func (h *LogHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		h.listBySeverity(w, r, ref)
		return
	}

	rec, err := h.Repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			JSONError(w, "log not found", http.StatusNotFound)
			return
		}
		slog.Error("get log", "id", id, "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (h *LogHandler) listBySeverity(w http.ResponseWriter, r *http.Request, severity string) {
	limit, offset := pagination(r)
	logs, err := h.Repo.ListBySeverity(r.Context(), severity, limit, offset)
	if err != nil {
		slog.Error("list logs by severity", "severity", severity, "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	if len(logs) == 0 && h.EmptyResultNotFound {
		JSONError(w, "logs not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, logs)
}

//
// ==========================
// Update Log (admin)
// ==========================
//

func (h *LogHandler) UpdateLog(w http.ResponseWriter, r *http.Request) {
	id, ok := logID(w, r)
	if !ok {
		return
	}

	var body logBody
	if !decodeAndValidate(w, r, &body) {
		return
	}

	rec, err := h.Repo.Update(r.Context(), id, body.input())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			JSONError(w, "log not found", http.StatusNotFound)
			return
		}
		slog.Error("update log", "id", id, "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	h.audit(r, "update", id)
	writeJSON(w, http.StatusOK, rec)
}

//
// ==========================
// Delete Log (admin)
// ==========================
//

func (h *LogHandler) DeleteLog(w http.ResponseWriter, r *http.Request) {
	id, ok := logID(w, r)
	if !ok {
		return
	}

	if err := h.Repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			JSONError(w, "log not found", http.StatusNotFound)
			return
		}
		slog.Error("delete log", "id", id, "error", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	h.audit(r, "delete", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *LogHandler) audit(r *http.Request, action string, id int64) {
	if h.AuditRepo == nil {
		return
	}
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		return
	}
	if err := h.AuditRepo.Log(r.Context(), user.ID, action, "log", id, ""); err != nil {
		slog.Warn("audit log write failed", "action", action, "log_id", id, "error", err)
	}
}

func logID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "ref"), 10, 64)
	if err != nil || id <= 0 {
		JSONError(w, "invalid log id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// pagination reads limit (default 100, capped at 1000) and offset (default 0).
func pagination(r *http.Request) (int, int) {
	limit := defaultLogLimit
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 {
			limit = min(val, maxLogLimit)
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if val, err := strconv.Atoi(o); err == nil && val >= 0 {
			offset = val
		}
	}
	return limit, offset
}
