package handler

import (
	"context"
	"net/http"
	"time"
)

// ServiceHealth is one dependency in the health report.
type ServiceHealth struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // up, down, unknown
	Details string `json:"details,omitempty"`
}

type HealthReport struct {
	Status   string          `json:"status"` // healthy, degraded
	Mode     string          `json:"mode"`   // attached, detached
	Services []ServiceHealth `json:"services"`
}

// probe is nil when the dependency is not configured.
type probe struct {
	name  string
	check func(context.Context) error
}

func (h *Handler) probes() []probe {
	p := []probe{{name: "backend"}, {name: "postgres"}, {name: "kubernetes"}, {name: "s3/minio"}}
	if h.api != nil {
		p[0].check = func(ctx context.Context) error {
			_, err := h.api.ListServices(ctx)
			return err
		}
	}
	if h.journal != nil {
		p[1].check = h.journal.Ping
	}
	if h.kube != nil {
		p[2].check = h.kube.Healthy
	}
	if h.exports != nil {
		p[3].check = h.exports.Healthy
	}
	return p
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	report := HealthReport{Status: "healthy", Mode: "attached"}
	if h.api == nil {
		report.Mode = "detached"
	}
	for _, p := range h.probes() {
		sh := ServiceHealth{Name: p.name, Status: "up"}
		if p.check == nil {
			sh.Status, sh.Details = "unknown", "not configured"
		} else if err := p.check(ctx); err != nil {
			sh.Status, sh.Details = "down", err.Error()
			report.Status = "degraded"
		}
		report.Services = append(report.Services, sh)
	}
	writeJSON(w, report)
}
