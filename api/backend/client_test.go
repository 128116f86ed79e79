package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestListServices_NumericAndStringIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/services" || r.Method != http.MethodGet {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`[
			{"id": 1, "name": "demo-api", "status": "healthy", "version": "v1.0.2", "pods": 3, "lastDeploy": "2h ago"},
			{"id": "svc-2", "name": "demo-frontend", "githubRepo": "acme/web", "status": "warning", "version": "v2.1.0", "pods": 2}
		]`))
	}))
	defer srv.Close()

	services, err := New(srv.URL).ListServices(context.Background())
	if err != nil {
		t.Fatalf("ListServices: %v", err)
	}
	if len(services) != 2 {
		t.Fatalf("got %d services, want 2", len(services))
	}
	if services[0].ID != "1" || services[0].Pods != 3 {
		t.Errorf("services[0] = %+v", services[0])
	}
	if services[1].ID != "svc-2" || services[1].GithubRepo != "acme/web" {
		t.Errorf("services[1] = %+v", services[1])
	}
}

func TestClient_SendsBearerToken(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	c.Token = "ghp_secret"
	if _, err := c.ListDeployments(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got != "Bearer ghp_secret" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestClient_HTTPErrors(t *testing.T) {
	tests := []struct {
		code     int
		notFound bool
		server   bool
	}{
		{http.StatusNotFound, true, false},
		{http.StatusBadRequest, false, false},
		{http.StatusBadGateway, false, true},
		{http.StatusInternalServerError, false, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", tt.code)
			}))
			defer srv.Close()

			_, err := New(srv.URL).GetDeployment(context.Background(), "42")
			var he *HTTPError
			if !errors.As(err, &he) {
				t.Fatalf("expected *HTTPError, got %v", err)
			}
			if he.StatusCode != tt.code || he.Body != "boom" {
				t.Errorf("HTTPError = %+v", he)
			}
			if IsNotFound(err) != tt.notFound {
				t.Errorf("IsNotFound = %v", IsNotFound(err))
			}
			if IsServerError(err) != tt.server {
				t.Errorf("IsServerError = %v", IsServerError(err))
			}
		})
	}
}

func TestDeploy_AcceptsDeploymentIDField(t *testing.T) {
	var body DeployRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/deploy" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"deploymentId": 77, "status": "BUILD_TRIGGERED"}`))
	}))
	defer srv.Close()

	req := DeployRequest{ServiceID: "1", Environment: "production", Description: "faster", Strategy: "canary"}
	rec, err := New(srv.URL).Deploy(context.Background(), req)
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	if rec.ID != "77" || rec.ServiceID != "1" || rec.Strategy != "canary" || rec.Environment != "production" {
		t.Errorf("record = %+v", rec)
	}
	if body.ServiceID != "1" || body.Description != "faster" {
		t.Errorf("request body = %+v", body)
	}
}

func TestDeploy_NoID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "BUILD_TRIGGERED"}`))
	}))
	defer srv.Close()

	if _, err := New(srv.URL).Deploy(context.Background(), DeployRequest{ServiceID: "1"}); err == nil {
		t.Error("expected error when backend returns no id")
	}
}

func TestPromoteRollback_Paths(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()
	if err := c.Promote(ctx, "9"); err != nil {
		t.Fatal(err)
	}
	if err := c.Rollback(ctx, "9"); err != nil {
		t.Fatal(err)
	}
	if err := c.DeleteDeployment(ctx, "9"); err != nil {
		t.Fatal(err)
	}
	if err := c.DeleteService(ctx, "3"); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	defer mu.Unlock()
	want := []string{"POST /deploy/9/promote", "POST /deploy/9/rollback", "DELETE /deploy/9", "DELETE /services/3"}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v", paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestCreateServiceRequest_Normalize(t *testing.T) {
	tests := []struct {
		name    string
		in      CreateServiceRequest
		wantErr bool
		wantURL string
	}{
		{"missing name", CreateServiceRequest{GitURL: "acme/api"}, true, ""},
		{"missing repo", CreateServiceRequest{Name: "api"}, true, ""},
		{"shorthand", CreateServiceRequest{Name: "api", GitURL: "acme/api"}, false, "https://github.com/acme/api"},
		{"full url", CreateServiceRequest{Name: "api", GitURL: "https://gitlab.com/acme/api"}, false, "https://gitlab.com/acme/api"},
		{"bad criticality", CreateServiceRequest{Name: "api", GitURL: "acme/api", Criticality: "extreme"}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.in
			err := req.Normalize()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if req.GitURL != tt.wantURL {
				t.Errorf("GitURL = %q, want %q", req.GitURL, tt.wantURL)
			}
			if req.GitBranch != "main" || req.Namespace != "default" || req.Criticality != "medium" {
				t.Errorf("defaults not applied: %+v", req)
			}
		})
	}
}

func TestDeployRequest_Normalize(t *testing.T) {
	req := DeployRequest{ServiceID: "  "}
	if err := req.Normalize(); !errors.Is(err, ErrMissingField) {
		t.Errorf("expected ErrMissingField, got %v", err)
	}

	req = DeployRequest{ServiceID: "1", Strategy: "Blue-Green"}
	if err := req.Normalize(); err != nil {
		t.Fatal(err)
	}
	if req.Strategy != "blue-green" || req.Environment != "production" {
		t.Errorf("normalized = %+v", req)
	}

	req = DeployRequest{ServiceID: "1", Strategy: "yolo"}
	if err := req.Normalize(); !errors.Is(err, ErrInvalidField) {
		t.Errorf("expected ErrInvalidField, got %v", err)
	}
}
