// Package backendtest serves an in-memory deployment backend over httptest
// for exercising clients against the real REST contract.
package backendtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"kubegarden/api/backend"
)

// Step is one scripted answer to GET /deploy/{id}. A non-zero Code answers
// with that HTTP status instead of the record.
type Step struct {
	Status string
	Code   int
	Error  string
}

type Server struct {
	*httptest.Server

	mu          sync.Mutex
	services    []backend.Service
	deployments map[string]*backend.DeploymentRecord
	order       []string
	scripts     map[string][]Step
	script      []Step
	nextID      int
	calls       map[string]int
	promoted    []string
	rolledBack  []string
}

func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		deployments: make(map[string]*backend.DeploymentRecord),
		scripts:     make(map[string][]Step),
		calls:       make(map[string]int),
		nextID:      100,
	}

	r := chi.NewRouter()
	r.Use(s.count)
	r.Get("/services", s.listServices)
	r.Post("/services", s.createService)
	r.Delete("/services/{id}", s.deleteService)
	r.Get("/deployments", s.listDeployments)
	r.Post("/deploy", s.deploy)
	r.Get("/deploy/{id}", s.getDeployment)
	r.Delete("/deploy/{id}", s.deleteDeployment)
	r.Post("/deploy/{id}/promote", s.promote)
	r.Post("/deploy/{id}/rollback", s.rollback)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// Script sets the status sequence handed to deployments created afterwards.
// The last step repeats once the sequence is exhausted.
func (s *Server) Script(steps ...Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = steps
}

func (s *Server) AddService(svc backend.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services = append(s.services, svc)
}

func (s *Server) AddDeployment(rec backend.DeploymentRecord, steps ...Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := rec
	s.deployments[string(rec.ID)] = &r
	s.order = append(s.order, string(rec.ID))
	if len(steps) > 0 {
		s.scripts[string(rec.ID)] = steps
	}
}

// Calls returns how many requests hit "METHOD /path".
func (s *Server) Calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+" "+path]
}

// Promoted lists deployment ids that received a promote call.
func (s *Server) Promoted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.promoted...)
}

// RolledBack lists deployment ids that received a rollback call.
func (s *Server) RolledBack() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.rolledBack...)
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.Method+" "+r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) listServices(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]backend.Service{}, s.services...)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createService(w http.ResponseWriter, r *http.Request) {
	var req backend.CreateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	svc := backend.Service{
		ID:         backend.ID(strconv.Itoa(s.nextID)),
		Name:       req.Name,
		GithubRepo: req.GitURL,
		Status:     "healthy",
		Version:    "v0.0.0",
	}
	s.services = append(s.services, svc)
	writeJSON(w, http.StatusCreated, svc)
}

func (s *Server) deleteService(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, svc := range s.services {
		if string(svc.ID) == id {
			s.services = append(s.services[:i], s.services[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	http.Error(w, "service not found", http.StatusNotFound)
}

func (s *Server) listDeployments(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]backend.DeploymentRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.deployments[id])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deploy(w http.ResponseWriter, r *http.Request) {
	var req backend.DeployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ServiceID == "" {
		http.Error(w, "serviceId is required", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprintf("dep-%d", s.nextID)
	rec := &backend.DeploymentRecord{
		ID:          backend.ID(id),
		ServiceID:   backend.ID(req.ServiceID),
		ImageTag:    "pending",
		Status:      "BUILD_TRIGGERED",
		Strategy:    req.Strategy,
		Environment: req.Environment,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		Description: req.Description,
	}
	s.deployments[id] = rec
	s.order = append(s.order, id)
	if len(s.script) > 0 {
		s.scripts[id] = append([]Step{}, s.script...)
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) getDeployment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.deployments[id]
	if !ok {
		http.Error(w, "deployment not found", http.StatusNotFound)
		return
	}
	if steps := s.scripts[id]; len(steps) > 0 {
		step := steps[0]
		if len(steps) > 1 {
			s.scripts[id] = steps[1:]
		}
		if step.Code != 0 {
			http.Error(w, http.StatusText(step.Code), step.Code)
			return
		}
		rec.Status = step.Status
		rec.Error = step.Error
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) deleteDeployment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deployments[id]; !ok {
		http.Error(w, "deployment not found", http.StatusNotFound)
		return
	}
	delete(s.deployments, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) promote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.deployments[id]
	if !ok {
		http.Error(w, "deployment not found", http.StatusNotFound)
		return
	}
	rec.Status = "PROMOTED"
	s.promoted = append(s.promoted, id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "promoted"})
}

func (s *Server) rollback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.deployments[id]
	if !ok {
		http.Error(w, "deployment not found", http.StatusNotFound)
		return
	}
	rec.Status = "ROLLED_BACK"
	s.rolledBack = append(s.rolledBack, id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "rolled_back"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
