package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"kubegarden/cli/api"
	"kubegarden/cli/style"
)

var newService api.CreateServiceRequest

var servicesCmd = &cobra.Command{
	Use:     "services",
	Short:   "List services in the garden",
	Aliases: []string{"svc", "ls", "status"},
	Args:    cobra.NoArgs,
	RunE:    runServices,
}

var servicesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Plant a new service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := client.CreateService(newService)
		if err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}
		fmt.Println(style.SuccessBox.Render(fmt.Sprintf("✓ Planted %s (id %s)", svc.Name, svc.ID)))
		return nil
	},
}

var servicesDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Short:   "Remove a service",
	Aliases: []string{"rm"},
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client.DeleteService(args[0]); err != nil {
			return fmt.Errorf("failed to delete service: %w", err)
		}
		fmt.Println(style.DimText.Render("Removed service " + args[0]))
		return nil
	},
}

func init() {
	f := servicesCreateCmd.Flags()
	f.StringVar(&newService.Name, "name", "", "service name (required)")
	f.StringVar(&newService.GitURL, "repo", "", "git URL or GitHub owner/repo (required)")
	f.StringVar(&newService.GitBranch, "branch", "main", "git branch")
	f.StringVar(&newService.Namespace, "namespace", "default", "Kubernetes namespace")
	f.StringVar(&newService.Criticality, "criticality", "medium", "low, medium or high")
	servicesCreateCmd.MarkFlagRequired("name")
	servicesCreateCmd.MarkFlagRequired("repo")

	servicesCmd.AddCommand(servicesCreateCmd, servicesDeleteCmd)
	rootCmd.AddCommand(servicesCmd)
}

func runServices(cmd *cobra.Command, args []string) error {
	services, err := client.ListServices()
	if err != nil {
		return fmt.Errorf("failed to fetch services: %w", err)
	}
	if len(services) == 0 {
		fmt.Println(style.DimText.Render("The garden is empty. Plant a service with `garden services create`."))
		return nil
	}

	fmt.Println(style.Banner.Render("🌱 KUBE GARDEN") + style.Subtitle.Render(fmt.Sprintf("  %d service(s)", len(services))))
	fmt.Println()

	header := fmt.Sprintf("  %-2s  %-6s %-22s %-10s %-5s %-20s %s", "", "ID", "SERVICE", "VERSION", "PODS", "LAST DEPLOY", "REPO")
	fmt.Println(style.TableHeader.Render(header))
	for _, svc := range services {
		printServiceRow(svc)
	}
	fmt.Println()
	return nil
}

func printServiceRow(svc api.Service) {
	version := svc.Version
	if version == "" {
		version = "-"
	}
	last := svc.LastDeploy
	if last == "" {
		last = "never"
	}
	fmt.Printf("  %s  %s %s %s %s %s %s\n",
		style.ServiceDot(svc.Status),
		style.DimText.Render(padRight(shorten(svc.ID, 6), 6)),
		style.Bold.Render(padRight(shorten(svc.Name, 22), 22)),
		padRight(version, 10),
		padRight(fmt.Sprint(svc.Pods), 5),
		style.DimText.Render(padRight(shorten(last, 20), 20)),
		style.DimText.Render(svc.GithubRepo),
	)
}
