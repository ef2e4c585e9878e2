package http

import (
	"net/http"
	"strconv"

	"github.com/Strob0t/PolicyForge/internal/domain/experience"
	"github.com/Strob0t/PolicyForge/internal/port/messagequeue"
	"github.com/Strob0t/PolicyForge/internal/service"
)

// Handlers bundles the services the HTTP API exposes.
type Handlers struct {
	collector *service.CollectorService
	queue     messagequeue.Queue
}

// NewHandlers creates the handler set.
func NewHandlers(collector *service.CollectorService, queue messagequeue.Queue) *Handlers {
	return &Handlers{collector: collector, queue: queue}
}

// Health reports service liveness and broker connectivity.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"nats_connected": h.queue.IsConnected(),
	})
}

// CollectExperience records a single experience.
func (h *Handlers) CollectExperience(w http.ResponseWriter, r *http.Request) {
	rec, ok := readJSON[experience.Record](w, r)
	if !ok {
		return
	}

	e, err := h.collector.Collect(r.Context(), &rec)
	if err != nil {
		writeDomainError(w, err, "experience not recorded")
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// CollectBatch records multiple experiences in order.
func (h *Handlers) CollectBatch(w http.ResponseWriter, r *http.Request) {
	recs, ok := readJSON[[]experience.Record](w, r)
	if !ok {
		return
	}
	if len(recs) == 0 {
		writeError(w, http.StatusBadRequest, "batch must not be empty")
		return
	}

	out, err := h.collector.CollectBatch(r.Context(), recs)
	if err != nil {
		writeDomainError(w, err, "batch not recorded")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"collected":   len(out),
		"experiences": out,
	})
}

// ListExperiences returns stored experiences with optional query filters.
func (h *Handlers) ListExperiences(w http.ResponseWriter, r *http.Request) {
	f, ok := filterFromQuery(w, r)
	if !ok {
		return
	}

	exps, err := h.collector.Load(r.Context(), f)
	if err != nil {
		writeDomainError(w, err, "experiences not loaded")
		return
	}
	if exps == nil {
		exps = []experience.Experience{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":       len(exps),
		"experiences": exps,
	})
}

// GetStatistics returns aggregate statistics over the stored set.
func (h *Handlers) GetStatistics(w http.ResponseWriter, r *http.Request) {
	st, err := h.collector.Statistics(r.Context())
	if err != nil {
		writeDomainError(w, err, "statistics not available")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ExportExperiences streams the filtered set in the requested format.
func (h *Handlers) ExportExperiences(w http.ResponseWriter, r *http.Request) {
	f, ok := filterFromQuery(w, r)
	if !ok {
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "jsonl"
	}

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
	case "json":
		w.Header().Set("Content-Type", "application/json")
	case "jsonl":
		w.Header().Set("Content-Type", "application/x-ndjson")
	default:
		writeError(w, http.StatusBadRequest, "unsupported export format "+strconv.Quote(format))
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="experiences.`+format+`"`)

	if _, err := h.collector.Export(r.Context(), w, format, f); err != nil {
		// Headers are already written; all we can do is surface the error.
		writeDomainError(w, err, "export failed")
	}
}

// ClearExperiences removes every stored experience.
func (h *Handlers) ClearExperiences(w http.ResponseWriter, r *http.Request) {
	if err := h.collector.Clear(r.Context()); err != nil {
		writeDomainError(w, err, "store not cleared")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// filterFromQuery parses the shared filter query parameters.
func filterFromQuery(w http.ResponseWriter, r *http.Request) (experience.Filter, bool) {
	q := r.URL.Query()
	f := experience.Filter{
		TaskType: q.Get("task_type"),
		Domain:   q.Get("domain"),
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return f, false
		}
		f.Limit = n
	}
	if v := q.Get("min_reward"); v != "" {
		mr, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "min_reward must be a number")
			return f, false
		}
		f.MinReward = &mr
	}
	return f, true
}
