package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"kubegarden/api/hub"
	"kubegarden/api/settings"
)

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.settings.Get())
}

// PutSettings applies the fields present in the body over the current
// settings.
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	next, err := h.settings.Update(func(s *settings.Settings) error {
		if err := json.Unmarshal(body, s); err != nil {
			return fmt.Errorf("%w: %v", settings.ErrInvalid, err)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	h.broadcast(hub.Event{Type: "settings.updated", Payload: next})
	writeJSON(w, next)
}
