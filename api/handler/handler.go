package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"kubegarden/api/auth"
	"kubegarden/api/backend"
	"kubegarden/api/config"
	"kubegarden/api/console"
	gcron "kubegarden/api/cron"
	"kubegarden/api/hub"
	"kubegarden/api/k8s"
	"kubegarden/api/logger"
	"kubegarden/api/settings"
	"kubegarden/api/storage"
	"kubegarden/api/store"
)

// Journal records who did what to which deployment. *store.DB implements it.
type Journal interface {
	Append(ctx context.Context, e store.JournalEntry) error
	ListByDeployment(ctx context.Context, deploymentID string) ([]store.JournalEntry, error)
	Starter(ctx context.Context) (map[string]store.JournalEntry, error)
	Latest(ctx context.Context) (map[string]store.JournalEntry, error)
	Ping(ctx context.Context) error
}

// Exports keeps history snapshots. *storage.Client implements it.
type Exports interface {
	PutJSON(ctx context.Context, key string, v any) error
	GetJSON(ctx context.Context, key string, v any) error
	ListExports(ctx context.Context) ([]storage.Object, error)
	Healthy(ctx context.Context) error
	Bucket() string
}

type Handler struct {
	api      *backend.Client // nil in detached mode
	console  *console.Manager
	settings *settings.Store
	auth     *auth.Issuer
	ws       *hub.Hub
	cfg      *config.Config
	journal  Journal
	kube     *k8s.Client
	exports  Exports
	jobs     *gcron.Scheduler
}

// New wires a handler. api is nil when no backend is configured; journal,
// kube, exports and jobs are optional.
func New(cfg *config.Config, api *backend.Client, mgr *console.Manager, st *settings.Store, issuer *auth.Issuer, ws *hub.Hub, journal Journal, kube *k8s.Client, exports Exports, jobs *gcron.Scheduler) *Handler {
	return &Handler{
		api:      api,
		console:  mgr,
		settings: st,
		auth:     issuer,
		ws:       ws,
		cfg:      cfg,
		journal:  journal,
		kube:     kube,
		exports:  exports,
		jobs:     jobs,
	}
}

// Routes registers the dashboard API. Login and health are public, the
// rest needs a session.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.Get("/health", h.Health)

	r.Group(func(r chi.Router) {
		r.Use(h.auth.Middleware)

		r.Get("/me", h.Me)

		r.Get("/services", h.ListServices)
		r.Post("/services", h.CreateService)
		r.Delete("/services/{id}", h.DeleteService)

		r.Get("/console", h.ListConsoles)
		r.Post("/console", h.StartConsole)
		r.Route("/console/{sid}", func(r chi.Router) {
			r.Get("/", h.GetConsole)
			r.Post("/promote", h.PromoteConsole)
			r.Post("/rollback", h.RollbackConsole)
			r.Delete("/", h.StopConsole)
		})

		r.Get("/history", h.ListHistory)
		r.Post("/history/export", h.ExportHistory)
		r.Get("/history/exports", h.ListExports)
		r.Get("/history/exports/{name}", h.GetExport)
		r.Get("/history/{id}/journal", h.DeploymentJournal)
		r.Delete("/history/{id}", h.DeleteHistory)

		r.Get("/jobs", h.ListJobs)
		r.Post("/jobs/{name}/run", h.RunJob)

		r.Get("/settings", h.GetSettings)
		r.Put("/settings", h.PutSettings)
	})
}

func (h *Handler) requireBackend(w http.ResponseWriter) bool {
	if h.api == nil {
		http.Error(w, backend.ErrNotConfigured.Error(), http.StatusServiceUnavailable)
		return false
	}
	return true
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, backend.ErrMissingField),
		errors.Is(err, backend.ErrInvalidField),
		errors.Is(err, settings.ErrInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, console.ErrNotFound),
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, gcron.ErrUnknownJob):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, console.ErrBusy), errors.Is(err, console.ErrInvalidState):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, backend.ErrNotConfigured):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case backend.IsNotFound(err):
		http.Error(w, "not found upstream: "+err.Error(), http.StatusNotFound)
	case errors.As(err, new(*backend.HTTPError)):
		http.Error(w, "backend: "+err.Error(), http.StatusBadGateway)
	default:
		logger.GetLogger().Error("handler: request failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeCreated(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) broadcast(evt hub.Event) {
	if h.ws != nil {
		h.ws.Broadcast(evt)
	}
}

func author(r *http.Request) string {
	if c, ok := auth.FromContext(r.Context()); ok {
		return c.Name
	}
	return ""
}
