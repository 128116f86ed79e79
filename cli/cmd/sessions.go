package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"kubegarden/cli/api"
	"kubegarden/cli/style"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List deployment console sessions on the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := client.ListConsoles()
		if err != nil {
			return fmt.Errorf("failed to fetch sessions: %w", err)
		}
		if len(list) == 0 {
			fmt.Println(style.DimText.Render("No console sessions."))
			return nil
		}
		header := fmt.Sprintf("  %-36s %-18s %-11s %-12s %-12s %s", "SESSION", "SERVICE", "STATE", "DEPLOYMENT", "BY", "STARTED")
		fmt.Println(style.TableHeader.Render(header))
		for _, s := range list {
			fmt.Printf("  %s %s %s %s %s %s\n",
				style.DimText.Render(padRight(s.ID, 36)),
				style.Bold.Render(padRight(shorten(s.ServiceName, 18), 18)),
				stateStyle(s.State).Render(padRight(string(s.State), 11)),
				padRight(shorten(s.DeploymentID, 12), 12),
				padRight(shorten(s.Author, 12), 12),
				style.DimText.Render(s.StartedAt.Local().Format(time.DateTime)),
			)
		}
		fmt.Println()
		return nil
	},
}

var promoteCmd = &cobra.Command{
	Use:   "promote <session-id>",
	Short: "Shift all traffic to a successful canary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(args[0], "Promoting", client.Promote)
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback <session-id>",
	Short: "Revert traffic to the stable version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(args[0], "Rolling back", client.Rollback)
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd, promoteCmd, rollbackCmd)
}

func stateStyle(s api.SessionState) lipgloss.Style {
	switch s {
	case api.Success, api.Promoted:
		return style.StepDone
	case api.Failed:
		return style.StepFailed
	case api.Planning, api.Running:
		return style.StepRunning
	default:
		return style.DimText
	}
}

func runAction(sessionID, verb string, call func(string) (*api.Snapshot, error)) error {
	p := tea.NewProgram(newActionModel(sessionID, verb, call))
	finalModel, err := p.Run()
	if err != nil {
		return err
	}
	return finalModel.(actionModel).err
}

// --- Messages ---

type actionDone struct{ snap *api.Snapshot }
type actionErr struct{ err error }

// --- Model ---

type actionModel struct {
	sessionID string
	verb      string
	call      func(string) (*api.Snapshot, error)
	spinner   spinner.Model
	snap      *api.Snapshot
	err       error
}

func newActionModel(sessionID, verb string, call func(string) (*api.Snapshot, error)) actionModel {
	s := spinner.New()
	s.Spinner = spinner.Moon
	s.Style = lipgloss.NewStyle().Foreground(style.Cyan)
	return actionModel{sessionID: sessionID, verb: verb, call: call, spinner: s}
}

func (m actionModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		snap, err := m.call(m.sessionID)
		if err != nil {
			return actionErr{err: err}
		}
		return actionDone{snap: snap}
	})
}

func (m actionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case actionDone:
		m.snap = msg.snap
		return m, tea.Quit

	case actionErr:
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m actionModel) View() string {
	if m.err != nil {
		return style.ErrorBox.Render(fmt.Sprintf("✗ %s failed: %s", m.verb, m.err)) + "\n"
	}
	if m.snap != nil {
		last := ""
		if n := len(m.snap.Logs); n > 0 {
			last = m.snap.Logs[n-1]
		}
		return style.SuccessBox.Render(fmt.Sprintf("✓ %s is now %s\n%s", m.snap.ServiceName, m.snap.State, last)) + "\n"
	}
	return fmt.Sprintf("  %s %s session %s...\n", m.spinner.View(), m.verb, style.Bold.Render(m.sessionID))
}
