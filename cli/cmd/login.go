package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"kubegarden/cli/style"
)

var (
	loginToken string
	loginName  string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Exchange an access token for a garden session",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.Token = ""
		if err := saveConfig(); err != nil {
			return err
		}
		fmt.Println(style.DimText.Render("Logged out."))
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginToken, "token", os.Getenv("GARDEN_ACCESS_TOKEN"), "access token")
	loginCmd.Flags().StringVar(&loginName, "name", "", "operator name shown in history")
	rootCmd.AddCommand(loginCmd, logoutCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	token := strings.TrimSpace(loginToken)
	if token == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Access token: ")
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read token: %w", err)
		}
		token = strings.TrimSpace(line)
	}
	if token == "" {
		return fmt.Errorf("access token is required")
	}

	resp, err := client.Login(token, loginName)
	if err != nil {
		fmt.Println(style.ErrorBox.Render("✗ Login failed"))
		return err
	}

	cfg.APIURL = apiURL
	cfg.Token = resp.Token
	cfg.Name = resp.Name
	if err := saveConfig(); err != nil {
		return err
	}
	fmt.Println(style.SuccessBox.Render(fmt.Sprintf("✓ Welcome to the garden, %s", resp.Name)))
	fmt.Println(style.DimText.Render("  Session valid until " + resp.ExpiresAt.Local().Format("2006-01-02 15:04")))
	return nil
}
