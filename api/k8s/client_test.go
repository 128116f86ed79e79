package k8s

import (
	"context"
	"testing"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func TestImageTag(t *testing.T) {
	tests := []struct {
		image string
		want  string
	}{
		{"myapp:latest", "latest"},
		{"myapp", ""},
		{"ghcr.io/user/myapp:v1.2.0", "v1.2.0"},
		{"registry.example.com:5000/app", ""},
		{"registry.example.com:5000/app:tag", "tag"},
		{"nginx:1.27@sha256:abc", "1.27"},
	}

	for _, tt := range tests {
		t.Run(tt.image, func(t *testing.T) {
			if got := imageTag(tt.image); got != tt.want {
				t.Errorf("imageTag(%q) = %q, want %q", tt.image, got, tt.want)
			}
		})
	}
}

func pod(name, app string, phase corev1.PodPhase, ready bool) *corev1.Pod {
	status := corev1.ConditionFalse
	if ready {
		status = corev1.ConditionTrue
	}
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "default", Labels: map[string]string{AppLabel: app}},
		Status: corev1.PodStatus{
			Phase:      phase,
			Conditions: []corev1.PodCondition{{Type: corev1.PodReady, Status: status}},
		},
	}
}

func TestWorkloads(t *testing.T) {
	cs := fake.NewSimpleClientset(
		pod("api-1", "demo-api", corev1.PodRunning, true),
		pod("api-2", "demo-api", corev1.PodRunning, false),
		pod("api-3", "demo-api", corev1.PodPending, false),
		pod("web-1", "web", corev1.PodRunning, true),
		&appsv1.Deployment{
			ObjectMeta: metav1.ObjectMeta{Name: "demo-api", Namespace: "default", Labels: map[string]string{AppLabel: "demo-api"}},
			Spec: appsv1.DeploymentSpec{
				Template: corev1.PodTemplateSpec{
					Spec: corev1.PodSpec{Containers: []corev1.Container{{Name: "demo-api", Image: "ghcr.io/acme/demo-api:v1.4.0"}}},
				},
			},
		},
	)

	got, err := NewForClientset(cs).Workloads(context.Background(), "default")
	if err != nil {
		t.Fatal(err)
	}
	api := got["demo-api"]
	if api.Pods != 2 || api.Ready != 1 || api.Version != "v1.4.0" {
		t.Errorf("demo-api = %+v", api)
	}
	if web := got["web"]; web.Pods != 1 || web.Image != "" {
		t.Errorf("web = %+v", web)
	}
}
