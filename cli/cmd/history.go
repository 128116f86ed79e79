package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"kubegarden/cli/api"
	"kubegarden/cli/style"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:     "history",
	Short:   "Show past deployments, newest first",
	Aliases: []string{"hist"},
	Args:    cobra.NoArgs,
	RunE:    runHistory,
}

var historyDeleteCmd = &cobra.Command{
	Use:     "delete <deployment-id>",
	Short:   "Delete a deployment record",
	Aliases: []string{"rm"},
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client.DeleteHistory(args[0]); err != nil {
			return fmt.Errorf("failed to delete deployment: %w", err)
		}
		fmt.Println(style.DimText.Render("Deleted deployment " + args[0]))
		return nil
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Upload a history snapshot to the server's bucket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		exp, err := client.ExportHistory()
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		fmt.Println(style.SuccessBox.Render(fmt.Sprintf("✓ Exported %d record(s) to s3://%s/%s", exp.Records, exp.Bucket, exp.Key)))
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <deployment-id>",
	Short: "Show who did what to a deployment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := client.Journal(args[0])
		if err != nil {
			if api.IsStatus(err, 503) {
				return fmt.Errorf("the server keeps no journal (GARDEN_DATABASE_URL unset)")
			}
			return fmt.Errorf("failed to fetch journal: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println(style.DimText.Render("Nothing recorded for " + args[0]))
			return nil
		}
		fmt.Println(style.TableHeader.Render(fmt.Sprintf("  %-20s %-12s %-12s %s", "WHEN", "ACTION", "BY", "NOTE")))
		for _, e := range entries {
			fmt.Printf("  %s %s %s %s\n",
				style.DimText.Render(padRight(e.CreatedAt.Local().Format("2006-01-02 15:04:05"), 20)),
				style.Bold.Render(padRight(e.Action, 12)),
				padRight(shorten(e.Author, 12), 12),
				style.DimText.Render(shorten(e.Note, 50)),
			)
		}
		return nil
	},
}

var historyExportsCmd = &cobra.Command{
	Use:   "exports [name]",
	Short: "List stored snapshots, or show the records in one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			items, err := client.GetExport(args[0])
			if err != nil {
				return fmt.Errorf("failed to fetch export: %w", err)
			}
			fmt.Println(style.TableHeader.Render(fmt.Sprintf("  %-12s %-8s %-20s %-11s %-12s %-22s %s", "ID", "SERVICE", "STATUS", "STRATEGY", "BY", "CREATED", "NOTE")))
			for _, it := range items {
				printHistoryRow(it)
			}
			return nil
		}

		objs, err := client.ListExports()
		if err != nil {
			return fmt.Errorf("failed to list exports: %w", err)
		}
		if len(objs) == 0 {
			fmt.Println(style.DimText.Render("No exports yet. Run `garden history export`."))
			return nil
		}
		fmt.Println(style.TableHeader.Render(fmt.Sprintf("  %-24s %-10s %s", "NAME", "SIZE", "STORED")))
		for _, o := range objs {
			fmt.Printf("  %s %s %s\n",
				style.Bold.Render(padRight(o.Name, 24)),
				padRight(fmt.Sprintf("%d B", o.Size), 10),
				style.DimText.Render(o.LastModified.Local().Format("2006-01-02 15:04")),
			)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of deployments to show (0 for all)")
	historyCmd.AddCommand(historyDeleteCmd, historyExportCmd, historyShowCmd, historyExportsCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	items, err := client.ListHistory()
	if err != nil {
		return fmt.Errorf("failed to fetch history: %w", err)
	}
	if len(items) == 0 {
		fmt.Println(style.DimText.Render("No deployments yet."))
		return nil
	}
	if historyLimit > 0 && len(items) > historyLimit {
		items = items[:historyLimit]
	}

	header := fmt.Sprintf("  %-12s %-8s %-20s %-11s %-12s %-22s %s", "ID", "SERVICE", "STATUS", "STRATEGY", "BY", "CREATED", "NOTE")
	fmt.Println(style.TableHeader.Render(header))
	for _, it := range items {
		printHistoryRow(it)
	}
	fmt.Println()
	return nil
}

func printHistoryRow(it api.HistoryItem) {
	note := it.Note
	if note == "" {
		note = it.Description
	}
	if it.Error != "" {
		note = it.Error
	}
	fmt.Printf("  %s %s %s %s %s %s %s\n",
		style.Bold.Render(padRight(shorten(it.ID, 12), 12)),
		padRight(shorten(it.ServiceID, 8), 8),
		style.PhaseStyle(it.Phase).Render(padRight(shorten(it.Status, 20), 20)),
		style.StrategyBadge.UnsetPadding().Render(padRight(it.Strategy, 11)),
		padRight(shorten(it.Author, 12), 12),
		style.DimText.Render(padRight(shorten(it.CreatedAt, 22), 22)),
		style.DimText.Render(shorten(note, 40)),
	)
}
