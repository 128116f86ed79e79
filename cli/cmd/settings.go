package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"kubegarden/cli/api"
	"kubegarden/cli/style"
)

var settingsLocal bool

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show preferences",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := cfg.Settings
		source := "local"
		if !settingsLocal {
			if remote, err := client.GetSettings(); err == nil {
				s, source = *remote, "server"
			}
		}
		printSettings(s, source)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a preference (bgm, persona, language)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		next := cfg.Settings
		if err := next.Set(args[0], args[1]); err != nil {
			return err
		}
		cfg.Settings = next
		if err := saveConfig(); err != nil {
			return err
		}
		if !settingsLocal {
			if _, err := client.PutSettings(next); err != nil {
				fmt.Println(style.Warning.Render("Saved locally; server not updated: " + err.Error()))
				printSettings(next, "local")
				return nil
			}
		}
		printSettings(next, "saved")
		return nil
	},
}

func init() {
	settingsCmd.PersistentFlags().BoolVar(&settingsLocal, "local", false, "only use the CLI config file")
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func printSettings(s api.Settings, source string) {
	fmt.Println(style.Banner.Render("🌱 SETTINGS") + style.Subtitle.Render("  "+source))
	fmt.Printf("  %s %s\n", style.Key.Render("BGM"), style.Val.Render(onOff(s.BGM)))
	fmt.Printf("  %s %s %s\n", style.Key.Render("Persona"), style.Val.Render(s.Persona), style.DimText.Render("("+s.AgentName()+")"))
	fmt.Printf("  %s %s\n", style.Key.Render("Language"), style.Val.Render(s.Language))
	fmt.Println()
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
