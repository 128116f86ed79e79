package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"kubegarden/cli/api"
	"kubegarden/cli/style"
)

var (
	deployEnv         string
	deployStrategy    string
	deployMessage     string
	deployName        string
	deployAutoPromote bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy <service-id>",
	Short: "Deploy a service and follow it in the console",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeploy,
}

func init() {
	deployCmd.Flags().StringVarP(&deployEnv, "env", "e", "production", "target environment")
	deployCmd.Flags().StringVarP(&deployStrategy, "strategy", "s", "canary", "canary, blue-green or rolling")
	deployCmd.Flags().StringVarP(&deployMessage, "message", "m", "", "describe your changes")
	deployCmd.Flags().StringVar(&deployName, "name", "", "service name shown in the console")
	deployCmd.Flags().BoolVar(&deployAutoPromote, "promote", false, "promote automatically once the canary is live")
	rootCmd.AddCommand(deployCmd)
}

func runDeploy(cmd *cobra.Command, args []string) error {
	req := api.StartRequest{
		ServiceID:   args[0],
		ServiceName: deployName,
		Environment: deployEnv,
		Strategy:    deployStrategy,
		Description: deployMessage,
	}

	m := newConsoleModel(req, deployAutoPromote)
	p := tea.NewProgram(m)
	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	cm := finalModel.(consoleModel)
	if cm.err != nil {
		return cm.err
	}
	if cm.snap != nil && cm.snap.State == api.Failed {
		return fmt.Errorf("deploy failed")
	}
	return nil
}

// --- Messages ---

type wsMsg struct {
	Type    string          `json:"type"`
	Session string          `json:"session"`
	Payload json.RawMessage `json:"payload"`
}

type consoleStarted struct {
	snap *api.Snapshot
	ch   chan tea.Msg
}
type consoleUpdate struct{ snap *api.Snapshot }
type consoleActed struct{ snap *api.Snapshot }
type consoleErr struct{ err error }
type streamLost struct{ err error }
type pollTick struct{}

// --- Model ---

const visibleLogLines = 10

type consoleModel struct {
	req         api.StartRequest
	autoPromote bool
	spinner     spinner.Model
	snap        *api.Snapshot
	events      chan tea.Msg
	polling     bool
	acting      bool
	err         error
	startTime   time.Time
}

func newConsoleModel(req api.StartRequest, autoPromote bool) consoleModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(style.Primary)
	return consoleModel{
		req:         req,
		autoPromote: autoPromote,
		spinner:     s,
		startTime:   time.Now(),
	}
}

func (m consoleModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, startConsole(m.req))
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case consoleStarted:
		m.snap = msg.snap
		m.events = msg.ch
		if m.events == nil {
			m.polling = true
			return m, pollAfter()
		}
		return m, waitForEvent(m.events)

	case consoleUpdate:
		m.snap = msg.snap
		if cmd := m.settle(); cmd != nil {
			return m, cmd
		}
		return m, m.next()

	case consoleActed:
		m.acting = false
		m.snap = msg.snap
		if cmd := m.settle(); cmd != nil {
			return m, cmd
		}
		return m, nil

	case streamLost:
		m.polling = true
		return m, pollAfter()

	case pollTick:
		if m.snap == nil {
			return m, nil
		}
		return m, fetchConsole(m.snap.ID)

	case consoleErr:
		m.acting = false
		m.err = msg.err
		return m, tea.Quit
	}

	return m, nil
}

// next keeps listening for session updates.
func (m consoleModel) next() tea.Cmd {
	if m.polling {
		return pollAfter()
	}
	return waitForEvent(m.events)
}

// settle reacts to terminal states. It returns nil while the session still
// needs the stream.
func (m *consoleModel) settle() tea.Cmd {
	if m.snap == nil {
		return nil
	}
	switch m.snap.State {
	case api.Promoted, api.RolledBack, api.Stopped:
		return tea.Quit
	case api.Success:
		if m.autoPromote && !m.acting {
			m.acting = true
			return act(m.snap.ID, client.Promote)
		}
	}
	return nil
}

func (m consoleModel) handleKey(key string) (tea.Model, tea.Cmd) {
	state := api.Idle
	if m.snap != nil {
		state = m.snap.State
	}
	switch key {
	case "ctrl+c", "q":
		if state.Active() {
			// Leaving the console stops following the deployment.
			return m, tea.Sequence(stopConsole(m.snap.ID), tea.Quit)
		}
		return m, tea.Quit
	case "p":
		if state == api.Success && !m.acting {
			m.acting = true
			return m, act(m.snap.ID, client.Promote)
		}
	case "r":
		if (state == api.Success || state == api.Failed) && !m.acting {
			m.acting = true
			return m, act(m.snap.ID, client.Rollback)
		}
	}
	return m, nil
}

func (m consoleModel) View() string {
	var b strings.Builder

	b.WriteString(style.Banner.Render("🌱 GARDEN DEPLOY"))
	b.WriteString("\n")

	name := m.req.ServiceName
	if m.snap != nil {
		name = m.snap.ServiceName
	}
	if name == "" {
		name = m.req.ServiceID
	}
	b.WriteString(style.Key.Render("Service"))
	b.WriteString(style.Bold.Render(name))
	b.WriteString("\n")
	b.WriteString(style.Key.Render("Strategy"))
	b.WriteString(lipgloss.NewStyle().Foreground(style.Cyan).Render(m.req.Strategy))
	b.WriteString(style.DimText.Render("  → " + m.req.Environment))
	b.WriteString("\n")
	if m.snap != nil && m.snap.DeploymentID != "" {
		b.WriteString(style.Key.Render("Deployment"))
		b.WriteString(style.DimText.Render(m.snap.DeploymentID))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.snap != nil {
		stepIcons := map[string]string{
			"Test & Lint": "🧪",
			"Sec Scan":    "🔒",
			"Canary 10%":  "🐤",
		}
		for _, step := range m.snap.Timeline {
			icon := stepIcons[step.Name]
			label := padRight(step.Name, 12)
			switch step.State {
			case api.StepPending:
				b.WriteString(fmt.Sprintf("  %s %s %s\n", icon, style.DimText.Render(label), style.DimText.Render("waiting")))
			case api.StepRunning:
				b.WriteString(fmt.Sprintf("  %s %s %s %s\n", icon, style.StepRunning.Render(label), m.spinner.View(), style.StepRunning.Render("running")))
			case api.StepDone:
				b.WriteString(fmt.Sprintf("  %s %s %s\n", icon, style.StepDone.Render(label), style.StepDone.Render("✓ done")))
			case api.StepFailed:
				b.WriteString(fmt.Sprintf("  %s %s %s\n", icon, style.StepFailed.Render(label), style.StepFailed.Render("✗ failed")))
			}
		}
		b.WriteString("\n")

		logs := m.snap.Logs
		if len(logs) > visibleLogLines {
			logs = logs[len(logs)-visibleLogLines:]
		}
		for _, line := range logs {
			if strings.HasPrefix(line, "User: ") {
				b.WriteString("  " + style.UserLine.Render(line) + "\n")
			} else {
				b.WriteString("  " + style.AgentLine.Render(line) + "\n")
			}
		}
	}

	elapsed := time.Since(m.startTime).Round(time.Second)
	switch {
	case m.err != nil:
		b.WriteString(style.ErrorBox.Render("✗ " + m.err.Error()))
	case m.snap == nil:
		b.WriteString("\n" + m.spinner.View() + style.DimText.Render(" Contacting the garden..."))
	default:
		b.WriteString(m.footer(elapsed))
	}
	b.WriteString("\n")
	return b.String()
}

func (m consoleModel) footer(elapsed time.Duration) string {
	switch m.snap.State {
	case api.Planning, api.Running:
		return "\n" + m.spinner.View() + style.DimText.Render(fmt.Sprintf(" Growing... (%s)", elapsed))
	case api.Success:
		if m.acting {
			return "\n" + m.spinner.View() + style.DimText.Render(" Working...")
		}
		return style.SuccessBox.Render("✓ Canary live") + style.Hint.Render("\n[p] promote  [r] rollback  [q] quit")
	case api.Failed:
		msg := "Deploy failed"
		if m.snap.Error != "" {
			msg += ": " + m.snap.Error
		}
		if m.acting {
			return style.ErrorBox.Render("✗ "+msg) + "\n" + m.spinner.View() + style.DimText.Render(" Rolling back...")
		}
		return style.ErrorBox.Render("✗ "+msg) + style.Hint.Render("\n[r] rollback  [q] quit")
	case api.Promoted:
		return style.SuccessBox.Render(fmt.Sprintf("✓ Promoted to 100%% in %s", elapsed))
	case api.RolledBack:
		return style.SuccessBox.Render("✓ Rolled back to the stable version")
	case api.Stopped:
		return style.DimText.Render("Stopped following the deployment.")
	}
	return ""
}

// --- Commands ---

// startConsole opens the event stream before starting the session so no
// update is missed, then forwards this session's state events to a channel.
// Without a stream the model falls back to polling.
func startConsole(req api.StartRequest) tea.Cmd {
	return func() tea.Msg {
		conn, _, dialErr := websocket.DefaultDialer.Dial(client.WebSocketURL("console"), client.AuthHeader())

		snap, err := client.StartConsole(req)
		if err != nil {
			if conn != nil {
				conn.Close()
			}
			return consoleErr{err: err}
		}
		if dialErr != nil {
			return consoleStarted{snap: snap}
		}

		ch := make(chan tea.Msg, 32)
		go func() {
			defer conn.Close()
			defer close(ch)
			for {
				_, message, err := conn.ReadMessage()
				if err != nil {
					ch <- streamLost{err: err}
					return
				}
				var event wsMsg
				if err := json.Unmarshal(message, &event); err != nil {
					continue
				}
				if event.Session != snap.ID || event.Type != "console.state" {
					continue
				}
				var next api.Snapshot
				if err := json.Unmarshal(event.Payload, &next); err != nil {
					continue
				}
				ch <- consoleUpdate{snap: &next}
				if !next.State.Active() && next.State != api.Success && next.State != api.Failed {
					return
				}
			}
		}()
		return consoleStarted{snap: snap, ch: ch}
	}
}

func waitForEvent(ch chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return streamLost{}
		}
		return msg
	}
}

func pollAfter() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return pollTick{} })
}

func fetchConsole(id string) tea.Cmd {
	return func() tea.Msg {
		snap, err := client.GetConsole(id)
		if err != nil {
			return consoleErr{err: err}
		}
		return consoleUpdate{snap: snap}
	}
}

func act(id string, call func(string) (*api.Snapshot, error)) tea.Cmd {
	return func() tea.Msg {
		snap, err := call(id)
		if err != nil {
			return consoleErr{err: err}
		}
		return consoleActed{snap: snap}
	}
}

func stopConsole(id string) tea.Cmd {
	return func() tea.Msg {
		snap, err := client.StopConsole(id)
		if err != nil {
			return consoleErr{err: err}
		}
		return consoleActed{snap: snap}
	}
}
