package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"kubegarden/cli/api"
	"kubegarden/cli/config"
)

const defaultURL = "http://localhost:8900"

var (
	apiURL  string
	cfgPath string
	cfg     *config.Config
	client  *api.Client
)

var rootCmd = &cobra.Command{
	Use:   "garden",
	Short: "Kube Garden deployment dashboard in the terminal",
	Long: `Kube Garden: tend your services like a garden.

List services, plant new ones, deploy with a canary, then promote or roll back,
all against a Kube Garden server.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		apiURL = resolveURL(apiURL, cfg.APIURL)
		client = api.New(apiURL, cfg.Token)
		return nil
	},
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", os.Getenv("GARDEN_URL"), "Kube Garden server URL (default from config, then "+defaultURL+")")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.Path(), "CLI config file")
}

// resolveURL prefers the flag or GARDEN_URL, then the saved server.
func resolveURL(flag, saved string) string {
	for _, u := range []string{flag, saved} {
		if u = strings.TrimSpace(u); u != "" {
			return strings.TrimRight(u, "/")
		}
	}
	return defaultURL
}

func saveConfig() error {
	return cfg.Save(cfgPath)
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
