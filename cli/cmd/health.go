package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"kubegarden/cli/style"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the garden server and what it depends on",
	Aliases: []string{"doctor"},
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := client.Health()
		if err != nil {
			fmt.Println(style.ErrorBox.Render("Kube Garden is not answering at " + apiURL))
			return err
		}

		fmt.Println(style.Banner.Render("🌱 Garden health") + style.Subtitle.Render("  "+report.Mode))
		down := 0
		for _, dep := range report.Services {
			state := style.Warning.Render(dep.Status)
			if dep.Status == "up" {
				state = style.Healthy.Render(dep.Status)
			} else if dep.Status == "down" {
				state = style.Unhealthy.Render(dep.Status)
				down++
			}
			fmt.Printf("  %s  %s %s %s\n", style.ServiceDot(dep.Status), style.Bold.Render(padRight(dep.Name, 12)), state, style.DimText.Render(dep.Details))
		}

		switch {
		case report.Mode == "detached":
			fmt.Println(style.ErrorBox.Render("Detached: the server has no GARDEN_API_URL, deployments are unavailable"))
		case down > 0:
			fmt.Println(style.ErrorBox.Render(fmt.Sprintf("%d of %d dependencies down", down, len(report.Services))))
		default:
			fmt.Println(style.SuccessBox.Render("Everything is growing"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
