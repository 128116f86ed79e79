package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kubegarden/api/backend"
	"kubegarden/api/console"
)

func (h *Handler) ListConsoles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.console.List())
}

func (h *Handler) StartConsole(w http.ResponseWriter, r *http.Request) {
	var req console.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	// Validate before the detached check so an empty form never looks like
	// an outage.
	probe := backend.DeployRequest{ServiceID: req.ServiceID, Strategy: req.Strategy}
	if err := probe.Normalize(); err != nil {
		writeError(w, err)
		return
	}
	if !h.requireBackend(w) {
		return
	}
	req.Author = author(r)

	snap, err := h.console.Start(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCreated(w, snap)
}

func (h *Handler) GetConsole(w http.ResponseWriter, r *http.Request) {
	snap, err := h.console.Get(chi.URLParam(r, "sid"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, snap)
}

func (h *Handler) PromoteConsole(w http.ResponseWriter, r *http.Request) {
	snap, err := h.console.Promote(r.Context(), chi.URLParam(r, "sid"))
	h.writeAction(w, snap, err)
}

func (h *Handler) RollbackConsole(w http.ResponseWriter, r *http.Request) {
	snap, err := h.console.Rollback(r.Context(), chi.URLParam(r, "sid"))
	h.writeAction(w, snap, err)
}

func (h *Handler) StopConsole(w http.ResponseWriter, r *http.Request) {
	snap, err := h.console.Stop(chi.URLParam(r, "sid"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, snap)
}

func (h *Handler) writeAction(w http.ResponseWriter, snap console.Snapshot, err error) {
	var he *backend.HTTPError
	if errors.As(err, &he) {
		// The session stays in its previous state and can be retried.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]interface{}{"error": err.Error(), "session": snap})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, snap)
}
