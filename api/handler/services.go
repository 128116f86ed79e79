package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"kubegarden/api/backend"
	"kubegarden/api/hub"
	"kubegarden/api/logger"
)

func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	if !h.requireBackend(w) {
		return
	}
	services, err := h.services(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, services)
}

func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	if !h.requireBackend(w) {
		return
	}
	var req backend.CreateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.Normalize(); err != nil {
		writeError(w, err)
		return
	}

	svc, err := h.api.CreateService(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	logger.GetLogger().Info("service created", zap.String("name", req.Name), zap.String("by", author(r)))
	h.broadcast(hub.Event{Type: "services.changed", Payload: map[string]string{"created": req.Name}})

	if svc == nil {
		svc = &backend.Service{Name: req.Name, GithubRepo: req.GitURL}
	}
	writeCreated(w, svc)
}

func (h *Handler) DeleteService(w http.ResponseWriter, r *http.Request) {
	if !h.requireBackend(w) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.api.DeleteService(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	logger.GetLogger().Info("service deleted", zap.String("id", id), zap.String("by", author(r)))
	h.broadcast(hub.Event{Type: "services.changed", Payload: map[string]string{"deleted": id}})
	w.WriteHeader(http.StatusNoContent)
}

// services lists backend services with live pod counts from the cluster
// laid over them when Kubernetes is enabled.
func (h *Handler) services(ctx context.Context) ([]backend.Service, error) {
	services, err := h.api.ListServices(ctx)
	if err != nil {
		return nil, err
	}
	if services == nil {
		services = []backend.Service{}
	}
	if h.kube == nil {
		return services, nil
	}

	kctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	workloads, err := h.kube.Workloads(kctx, h.cfg.KubeNamespace)
	if err != nil {
		logger.GetLogger().Warn("k8s: workload overlay unavailable", zap.Error(err))
		return services, nil
	}
	for i, svc := range services {
		wl, ok := workloads[svc.Name]
		if !ok {
			continue
		}
		services[i].Pods = wl.Ready
		if wl.Version != "" {
			services[i].Version = wl.Version
		}
	}
	return services, nil
}

// RefreshServices pushes a services snapshot to connected dashboards.
func (h *Handler) RefreshServices(ctx context.Context) error {
	if h.api == nil || h.ws == nil || h.ws.Clients() == 0 {
		return nil
	}
	services, err := h.services(ctx)
	if err != nil {
		return err
	}
	h.ws.Broadcast(hub.Event{Type: "services.snapshot", Payload: services})
	return nil
}
