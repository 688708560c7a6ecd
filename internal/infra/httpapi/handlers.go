package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"rental_expiry_monitor/internal/app"
	"rental_expiry_monitor/internal/domain/run"
)

// Handler serves the HTTP API on top of the application services.
type Handler struct {
	monitor app.MonitorService
	history *app.HistoryService
	logger  *logrus.Entry
}

func NewHandler(monitor app.MonitorService, history *app.HistoryService, logger *logrus.Entry) *Handler {
	return &Handler{monitor: monitor, history: history, logger: logger}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// TriggerRun performs a pass now. Query: force, dry_run (bool), date (YYYY-MM-DD).
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var opts app.RunOptions
	var err error

	if opts.Force, err = boolParam(q.Get("force")); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid force parameter", err)
		return
	}
	if opts.DryRun, err = boolParam(q.Get("dry_run")); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid dry_run parameter", err)
		return
	}
	if d := q.Get("date"); d != "" {
		if opts.Today, err = time.Parse(dateLayout, d); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date, want YYYY-MM-DD", err)
			return
		}
	}

	report, err := h.monitor.RunOnce(r.Context(), opts)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, report)
	case errors.Is(err, run.ErrRunInProgress):
		writeError(w, http.StatusConflict, "A reconciliation run is already in progress", err)
	case errors.Is(err, app.ErrAlreadyRanToday):
		writeError(w, http.StatusConflict, "Decrement run already succeeded today, retry with force=true", err)
	case errors.Is(err, app.ErrColumnUnresolved), errors.Is(err, app.ErrColumnConflict):
		writeError(w, http.StatusUnprocessableEntity, "Table columns could not be resolved", err)
	default:
		h.logger.WithError(err).Error("Triggered run failed")
		writeError(w, http.StatusInternalServerError, "Reconciliation run failed", err)
	}
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	runs, err := h.history.ListRecent(r.Context(), limit)
	if err != nil {
		h.historyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRunDTOs(runs))
}

func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runID")

	details, err := h.history.Details(r.Context(), id)
	if err != nil {
		h.historyError(w, err)
		return
	}

	dto := RunDetailsDTO{Run: toRunDTO(details.Run), Events: make([]EventDTO, 0, len(details.Events))}
	for _, e := range details.Events {
		dto.Events = append(dto.Events, toEventDTO(e))
	}
	writeJSON(w, http.StatusOK, dto)
}

// Columns shows how the current headers resolve, without touching the table.
func (h *Handler) Columns(w http.ResponseWriter, r *http.Request) {
	mapping, headers, err := h.monitor.Columns(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, ColumnsDTO{Headers: headers, Mapping: mapping})
	case errors.Is(err, app.ErrColumnUnresolved), errors.Is(err, app.ErrColumnConflict):
		writeJSON(w, http.StatusUnprocessableEntity, ColumnsDTO{Headers: headers, Error: err.Error()})
	default:
		writeError(w, http.StatusInternalServerError, "Failed to read table", err)
	}
}

func (h *Handler) historyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, run.ErrRunNotFound):
		writeError(w, http.StatusNotFound, "Run not found", nil)
	case errors.Is(err, app.ErrJournalDisabled):
		writeError(w, http.StatusServiceUnavailable, "Run journal is disabled", nil)
	default:
		h.logger.WithError(err).Error("Failed to read run journal")
		writeError(w, http.StatusInternalServerError, "Failed to read run journal", err)
	}
}

func boolParam(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
