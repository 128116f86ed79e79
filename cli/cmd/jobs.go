package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"kubegarden/cli/api"
	"kubegarden/cli/style"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List the server's housekeeping jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		jobs, err := client.ListJobs()
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}
		fmt.Println(style.TableHeader.Render(fmt.Sprintf("  %-18s %-14s %-6s %-18s %s", "JOB", "SCHEDULE", "RUNS", "NEXT", "LAST ERROR")))
		for _, j := range jobs {
			printJob(j)
		}
		return nil
	},
}

var jobsRunCmd = &cobra.Command{
	Use:   "run <job>",
	Short: "Run a housekeeping job now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := client.RunJob(args[0])
		if err != nil {
			return fmt.Errorf("failed to run %s: %w", args[0], err)
		}
		if j.LastError != "" {
			fmt.Println(style.ErrorBox.Render(j.Name + ": " + j.LastError))
			return nil
		}
		fmt.Println(style.SuccessBox.Render(fmt.Sprintf("✓ %s ran (%d so far)", j.Name, j.Runs)))
		return nil
	},
}

func init() {
	jobsCmd.AddCommand(jobsRunCmd)
	rootCmd.AddCommand(jobsCmd)
}

func printJob(j api.Job) {
	next := "-"
	if !j.Next.IsZero() {
		next = j.Next.Local().Format(time.DateTime)[5:16]
	}
	fmt.Printf("  %s %s %s %s %s\n",
		style.Bold.Render(padRight(j.Name, 18)),
		padRight(j.Schedule, 14),
		padRight(fmt.Sprint(j.Runs), 6),
		style.DimText.Render(padRight(next, 18)),
		style.Unhealthy.Render(shorten(j.LastError, 40)),
	)
}
