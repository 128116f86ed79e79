package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"kubegarden/cli/style"
)

var Version = "dev"

const sprout = `
     \|/
    --*--   kube garden
     /|\`

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print client and server versions",
	Run: func(cmd *cobra.Command, args []string) {
		server := style.DimText.Render("unreachable")
		if v, err := client.Version(); err == nil {
			server = style.Val.Render(v)
		}

		fmt.Println(style.Banner.Render(sprout))
		for _, row := range [][2]string{
			{"Client", style.Val.Render(Version)},
			{"Server", server},
			{"Endpoint", style.Val.Render(apiURL)},
		} {
			fmt.Printf("  %s %s\n", style.Key.Render(row[0]), row[1])
		}
		fmt.Println(style.Hint.Render("  Water daily. Prune often. Ship canaries."))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
