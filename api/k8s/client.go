// Package k8s reads live workload state from the cluster so the dashboard
// can show real pod counts next to what the backend reports.
package k8s

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// AppLabel is the pod label that ties workloads to a garden service name.
const AppLabel = "app"

type Client struct {
	cs kubernetes.Interface
}

func NewClient() (*Client, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		kubeconfig := os.Getenv("KUBECONFIG")
		if kubeconfig == "" {
			kubeconfig = filepath.Join(os.Getenv("HOME"), ".kube", "config")
		}
		config, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("k8s config: %w", err)
		}
	}
	cs, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("k8s clientset: %w", err)
	}
	return &Client{cs: cs}, nil
}

// NewForClientset wraps an existing clientset.
func NewForClientset(cs kubernetes.Interface) *Client {
	return &Client{cs: cs}
}

// Workload is the live state of one app in a namespace.
type Workload struct {
	App     string `json:"app"`
	Pods    int    `json:"pods"`
	Ready   int    `json:"ready"`
	Image   string `json:"image,omitempty"`
	Version string `json:"version,omitempty"`
}

// Workloads groups pods and deployments in namespace by their app label.
func (c *Client) Workloads(ctx context.Context, namespace string) (map[string]Workload, error) {
	out := make(map[string]Workload)

	pods, err := c.cs.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: AppLabel})
	if err != nil {
		return nil, fmt.Errorf("list pods in %s: %w", namespace, err)
	}
	for _, p := range pods.Items {
		app := p.Labels[AppLabel]
		if app == "" || p.DeletionTimestamp != nil {
			continue
		}
		w := out[app]
		w.App = app
		if p.Status.Phase == corev1.PodRunning {
			w.Pods++
			if podReady(p) {
				w.Ready++
			}
		}
		out[app] = w
	}

	deps, err := c.cs.AppsV1().Deployments(namespace).List(ctx, metav1.ListOptions{LabelSelector: AppLabel})
	if err != nil {
		return nil, fmt.Errorf("list deployments in %s: %w", namespace, err)
	}
	for _, d := range deps.Items {
		app := d.Labels[AppLabel]
		if app == "" || len(d.Spec.Template.Spec.Containers) == 0 {
			continue
		}
		w := out[app]
		w.App = app
		w.Image = d.Spec.Template.Spec.Containers[0].Image
		w.Version = imageTag(w.Image)
		out[app] = w
	}
	return out, nil
}

func (c *Client) Healthy(ctx context.Context) error {
	_, err := c.cs.Discovery().ServerVersion()
	return err
}

func podReady(p corev1.Pod) bool {
	for _, cond := range p.Status.Conditions {
		if cond.Type == corev1.PodReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}

// imageTag returns the tag of an image reference, ignoring registry ports
// and digests.
func imageTag(image string) string {
	if i := strings.Index(image, "@"); i >= 0 {
		image = image[:i]
	}
	slash := strings.LastIndex(image, "/")
	if colon := strings.LastIndex(image, ":"); colon > slash {
		return image[colon+1:]
	}
	return ""
}
