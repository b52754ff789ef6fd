// Package api is the administrative HTTP surface: a thin adapter over the
// scheduler and store, nothing in here owns monitoring logic.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/yairfalse/shelfwatch/notify"
	"github.com/yairfalse/shelfwatch/runlog"
	"github.com/yairfalse/shelfwatch/scheduler"
	"github.com/yairfalse/shelfwatch/storage"
	"github.com/yairfalse/shelfwatch/telemetry"
	"github.com/yairfalse/shelfwatch/types"
)

// SchedulerService is the scheduler surface the API adapts.
type SchedulerService interface {
	Start()
	Stop()
	Running() bool
	Status() scheduler.Status
	TriggerNow(ctx context.Context, targetID string) (types.RunRecord, error)
	TriggerAll(ctx context.Context) ([]types.RunRecord, error)
	Resend(ctx context.Context, msg notify.Message) types.NotificationEvent
}

// TargetStore is the registry surface the API adapts.
type TargetStore interface {
	SaveTarget(t types.MonitoredTarget) error
	GetTarget(targetID string) (types.MonitoredTarget, error)
	DeleteTarget(targetID string) error
	ListTargets() ([]types.MonitoredTarget, error)
}

// HistoryFunc reads recent audit entries, newest first.
type HistoryFunc func(targetID string, limit int) ([]*runlog.Entry, error)

// Deps wires the router's collaborators.
type Deps struct {
	Scheduler SchedulerService
	Store     TargetStore
	History   HistoryFunc
	Logger    *telemetry.Logger
}

// NewRouter builds the admin API router.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()
	h := &handlers{deps: deps}

	r.Get("/health", h.health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/monitor", func(r chi.Router) {
			r.Get("/status", h.status)
			r.Post("/trigger", h.trigger)
			r.Post("/start", h.start)
			r.Post("/stop", h.stop)
		})

		r.Route("/targets", func(r chi.Router) {
			r.Get("/", h.listTargets)
			r.Post("/", h.addTarget)
			// target IDs are URLs; callers either escape them into the
			// path or pass ?id=
			r.Delete("/", h.deleteTarget)
			r.Delete("/{id}", h.deleteTarget)
		})

		r.Get("/history", h.history)
		r.Post("/notifications/resend", h.resend)
	})

	return r
}

type handlers struct {
	deps *Deps
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	targets, err := h.deps.Store.ListTargets()
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scheduler": h.deps.Scheduler.Status(),
		"targets":   len(targets),
	})
}

// trigger runs an immediate check: one target when ?target= names it, all
// targets otherwise. A target already checking is a 409, never a queue.
func (h *handlers) trigger(w http.ResponseWriter, r *http.Request) {
	targetID := r.URL.Query().Get("target")

	if targetID == "" {
		records, err := h.deps.Scheduler.TriggerAll(r.Context())
		if err != nil {
			h.fail(w, r, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"runs": records})
		return
	}

	rec, err := h.deps.Scheduler.TriggerNow(r.Context(), targetID)
	switch {
	case errors.Is(err, scheduler.ErrCheckInFlight):
		h.fail(w, r, http.StatusConflict, err)
	case errors.Is(err, scheduler.ErrUnknownTarget):
		h.fail(w, r, http.StatusNotFound, err)
	case err != nil:
		h.fail(w, r, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

func (h *handlers) start(w http.ResponseWriter, r *http.Request) {
	h.deps.Scheduler.Start()
	writeJSON(w, http.StatusOK, map[string]bool{"running": h.deps.Scheduler.Running()})
}

func (h *handlers) stop(w http.ResponseWriter, r *http.Request) {
	h.deps.Scheduler.Stop()
	writeJSON(w, http.StatusOK, map[string]bool{"running": h.deps.Scheduler.Running()})
}

func (h *handlers) listTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := h.deps.Store.ListTargets()
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	if targets == nil {
		targets = []types.MonitoredTarget{}
	}
	writeJSON(w, http.StatusOK, targets)
}

type addTargetRequest struct {
	URL          string   `json:"url"`
	Kind         string   `json:"kind"`
	Name         string   `json:"name,omitempty"`
	TargetSizes  []string `json:"target_sizes,omitempty"`
	TargetColors []string `json:"target_colors,omitempty"`
}

func (h *handlers) addTarget(w http.ResponseWriter, r *http.Request) {
	var req addTargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, http.StatusBadRequest, err)
		return
	}

	target, err := types.NewTarget(req.URL, types.SiteKind(req.Kind), req.Name)
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, err)
		return
	}
	target.TargetSizes = req.TargetSizes
	target.TargetColors = req.TargetColors

	if err := h.deps.Store.SaveTarget(target); err != nil {
		h.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, target)
}

func (h *handlers) deleteTarget(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		raw := chi.URLParam(r, "id")
		if unescaped, err := url.PathUnescape(raw); err == nil {
			id = unescaped
		} else {
			id = raw
		}
	}
	if id == "" {
		h.fail(w, r, http.StatusBadRequest, errors.New("target id is required"))
		return
	}

	if _, err := h.deps.Store.GetTarget(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.fail(w, r, http.StatusNotFound, err)
			return
		}
		h.fail(w, r, http.StatusInternalServerError, err)
		return
	}

	if err := h.deps.Store.DeleteTarget(id); err != nil {
		h.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if _, err := parsePositive(raw, &limit); err != nil {
			h.fail(w, r, http.StatusBadRequest, err)
			return
		}
	}

	entries, err := h.deps.History(r.URL.Query().Get("target"), limit)
	if err != nil {
		h.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []*runlog.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

type resendRequest struct {
	TargetID string `json:"target_id"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
}

func (h *handlers) resend(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, http.StatusBadRequest, err)
		return
	}
	if req.TargetID == "" || req.Subject == "" {
		h.fail(w, r, http.StatusBadRequest, errors.New("target_id and subject are required"))
		return
	}

	ev := h.deps.Scheduler.Resend(r.Context(), notify.Message{
		TargetID: req.TargetID,
		Subject:  req.Subject,
		Body:     req.Body,
	})
	writeJSON(w, http.StatusOK, ev)
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= 500 {
		h.deps.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parsePositive(raw string, out *int) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	*out = n
	return n, nil
}
