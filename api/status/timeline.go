package status

// StepState is the progress of one console timeline step.
type StepState string

const (
	StepPending StepState = "pending"
	StepRunning StepState = "running"
	StepDone    StepState = "done"
	StepFailed  StepState = "failed"
)

type Step struct {
	Name  string    `json:"name"`
	State StepState `json:"state"`
}

var timelineSteps = []string{"Test & Lint", "Sec Scan", "Canary 10%"}

// Timeline lays a deployment phase onto the three console steps.
func Timeline(p Phase) []Step {
	var states []StepState
	switch p {
	case Running:
		states = []StepState{StepDone, StepRunning, StepPending}
	case Succeeded:
		states = []StepState{StepDone, StepDone, StepDone}
	case Failed:
		states = []StepState{StepDone, StepFailed, StepPending}
	default:
		states = []StepState{StepRunning, StepPending, StepPending}
	}
	steps := make([]Step, len(timelineSteps))
	for i, name := range timelineSteps {
		steps[i] = Step{Name: name, State: states[i]}
	}
	return steps
}
