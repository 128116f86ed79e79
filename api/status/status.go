// Package status interprets the free-form status strings the deployment
// backend reports for a deployment record.
package status

import (
	"strings"
)

type Phase string

const (
	Pending   Phase = "pending"
	Running   Phase = "running"
	Succeeded Phase = "succeeded"
	Failed    Phase = "failed"
	Unknown   Phase = "unknown"
)

// Known backend statuses.
const (
	BuildTriggered = "BUILD_TRIGGERED"
	BuildCompleted = "BUILD_COMPLETED"
	ImageValidated = "IMAGE_VALIDATED"
	DeployedToEKS  = "DEPLOYED_TO_EKS"
	Success        = "SUCCESS"
)

var (
	succeeded = []string{Success, DeployedToEKS, "COMPLETED", "PROMOTED"}
	pending   = []string{"", "PENDING", "QUEUED", "CREATED"}
	running   = []string{"PROGRESS", "TRIGGERED", "VALIDATED", "RUNNING", "BUILDING", "DEPLOYING"}
)

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Classify maps a backend status to a phase. Failure markers win over
// everything else so that e.g. BUILD_TRIGGER_FAILED is a failure.
func Classify(s string) Phase {
	s = normalize(s)
	switch {
	case strings.Contains(s, "FAILED"), strings.Contains(s, "ERROR"):
		return Failed
	case oneOf(s, succeeded):
		return Succeeded
	case s == BuildCompleted:
		return Running
	case containsAny(s, running):
		return Running
	case oneOf(s, pending):
		return Pending
	}
	return Unknown
}

// Settling reports whether s is a status after which the backend stops
// reporting progress and success is assumed after a completion delay.
func Settling(s string) bool {
	return normalize(s) == BuildCompleted
}

func Terminal(p Phase) bool {
	return p == Succeeded || p == Failed
}

var descriptions = map[string]string{
	"PENDING":            "Deployment queued.",
	"QUEUED":             "Deployment queued.",
	"CREATED":            "Deployment record created.",
	BuildTriggered:       "GitHub Actions build triggered.",
	"BUILD_IN_PROGRESS":  "Building image...",
	BuildCompleted:       "Build completed. Waiting for rollout to settle.",
	ImageValidated:       "Image validated. Security scan passed.",
	"DEPLOY_IN_PROGRESS": "Rolling out 10% traffic...",
	DeployedToEKS:        "Deployed to EKS.",
	Success:              "Deployment succeeded.",
	"PROMOTED":           "Canary promoted to 100%.",
	"ROLLED_BACK":        "Traffic reverted to stable version.",
}

// Describe renders a status as a console log line.
func Describe(s string) string {
	n := normalize(s)
	if d, ok := descriptions[n]; ok {
		return d
	}
	switch Classify(n) {
	case Failed:
		return "Deployment failed (" + strings.TrimSpace(s) + ")."
	case Running:
		return "In progress: " + strings.TrimSpace(s)
	}
	return "Status: " + strings.TrimSpace(s)
}

func oneOf(s string, list []string) bool {
	for _, v := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, v := range subs {
		if strings.Contains(s, v) {
			return true
		}
	}
	return false
}
