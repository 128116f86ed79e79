package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"kubegarden/api/backend"
	"kubegarden/api/hub"
	"kubegarden/api/logger"
	"kubegarden/api/status"
	"kubegarden/api/storage"
	"kubegarden/api/store"
)

// HistoryItem is a backend deployment record annotated with its phase and,
// when the journal is enabled, who started it and what happened last.
type HistoryItem struct {
	backend.DeploymentRecord
	Phase      status.Phase `json:"phase"`
	Author     string       `json:"author,omitempty"`
	Note       string       `json:"note,omitempty"`
	LastAction string       `json:"lastAction,omitempty"`
}

func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	if !h.requireBackend(w) {
		return
	}
	items, err := h.history(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, items)
}

func (h *Handler) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	if !h.requireBackend(w) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.api.DeleteDeployment(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	if h.journal != nil {
		if err := h.journal.Append(r.Context(), store.JournalEntry{
			DeploymentID: id,
			Action:       store.ActionDeleted,
			Author:       author(r),
		}); err != nil {
			logger.GetLogger().Warn("journal: record delete", zap.String("deployment", id), zap.Error(err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeploymentJournal lists the operator actions recorded for one deployment.
func (h *Handler) DeploymentJournal(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		http.Error(w, "journal requires GARDEN_DATABASE_URL", http.StatusServiceUnavailable)
		return
	}
	entries, err := h.journal.ListByDeployment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []store.JournalEntry{}
	}
	writeJSON(w, entries)
}

func (h *Handler) requireExports(w http.ResponseWriter) bool {
	if h.exports == nil {
		http.Error(w, "history export requires S3 storage", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (h *Handler) ListExports(w http.ResponseWriter, r *http.Request) {
	if !h.requireExports(w) {
		return
	}
	objs, err := h.exports.ListExports(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if objs == nil {
		objs = []storage.Object{}
	}
	writeJSON(w, objs)
}

// GetExport returns the deployments stored in one export.
func (h *Handler) GetExport(w http.ResponseWriter, r *http.Request) {
	if !h.requireExports(w) {
		return
	}
	key, err := storage.ExportKeyFor(chi.URLParam(r, "name"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var snap exportSnapshot
	if err := h.exports.GetJSON(r.Context(), key, &snap); err != nil {
		writeError(w, err)
		return
	}
	if snap.Deployments == nil {
		snap.Deployments = []HistoryItem{}
	}
	writeJSON(w, snap.Deployments)
}

type exportSnapshot struct {
	ExportedAt  time.Time     `json:"exportedAt"`
	Deployments []HistoryItem `json:"deployments"`
}

func (h *Handler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	if !h.requireExports(w) {
		return
	}
	if !h.requireBackend(w) {
		return
	}
	key, n, err := h.Export(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeCreated(w, map[string]interface{}{
		"bucket":  h.exports.Bucket(),
		"key":     key,
		"records": n,
	})
}

// Export uploads the current history to the export bucket and returns the
// object key and record count.
func (h *Handler) Export(ctx context.Context) (string, int, error) {
	if h.api == nil {
		return "", 0, backend.ErrNotConfigured
	}
	if h.exports == nil {
		return "", 0, nil
	}
	items, err := h.history(ctx)
	if err != nil {
		return "", 0, err
	}
	now := time.Now()
	key := storage.ExportKey(now)
	if err := h.exports.PutJSON(ctx, key, exportSnapshot{ExportedAt: now.UTC(), Deployments: items}); err != nil {
		return "", 0, err
	}
	logger.GetLogger().Info("history exported", zap.String("key", key), zap.Int("records", len(items)))
	h.broadcast(hub.Event{Type: "history.exported", Payload: map[string]interface{}{"key": key, "records": len(items)}})
	return key, len(items), nil
}

func (h *Handler) history(ctx context.Context) ([]HistoryItem, error) {
	records, err := h.api.ListDeployments(ctx)
	if err != nil {
		return nil, err
	}

	var starters, latest map[string]store.JournalEntry
	if h.journal != nil {
		if starters, err = h.journal.Starter(ctx); err != nil {
			logger.GetLogger().Warn("journal: load starters", zap.Error(err))
		}
		if latest, err = h.journal.Latest(ctx); err != nil {
			logger.GetLogger().Warn("journal: load latest", zap.Error(err))
		}
	}

	items := make([]HistoryItem, 0, len(records))
	for _, rec := range records {
		item := HistoryItem{DeploymentRecord: rec, Phase: status.Classify(rec.Status)}
		if e, ok := starters[string(rec.ID)]; ok {
			item.Author = e.Author
			item.Note = e.Note
		}
		if e, ok := latest[string(rec.ID)]; ok {
			item.LastAction = e.Action
		}
		items = append(items, item)
	}
	sortNewestFirst(items)
	return items, nil
}

func sortNewestFirst(items []HistoryItem) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, ei := time.Parse(time.RFC3339, items[i].CreatedAt)
		tj, ej := time.Parse(time.RFC3339, items[j].CreatedAt)
		if ei != nil || ej != nil {
			return items[i].CreatedAt > items[j].CreatedAt
		}
		return ti.After(tj)
	})
}
