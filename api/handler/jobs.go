package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"kubegarden/api/logger"
)

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		http.Error(w, "scheduler not running", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, h.jobs.Jobs())
}

// RunJob runs a housekeeping job now and answers with its updated state.
func (h *Handler) RunJob(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		http.Error(w, "scheduler not running", http.StatusServiceUnavailable)
		return
	}
	name := chi.URLParam(r, "name")
	info, err := h.jobs.Trigger(name)
	if err != nil {
		writeError(w, err)
		return
	}
	logger.GetLogger().Info("job run on request", zap.String("job", name), zap.String("by", author(r)))
	writeJSON(w, info)
}
