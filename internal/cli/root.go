// Package cli implements the specfarm command tree.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/SpecFarm/SpecFarm/internal/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		"  ____                  _____\n" +
		" / ___| _ __   ___  ___|  ___|_ _ _ __ _ __ ___\n" +
		" \\___ \\| '_ \\ / _ \\/ __| |_ / _` | '__| '_ ` _ \\\n" +
		"  ___) | |_) |  __/ (__|  _| (_| | |  | | | | | |\n" +
		" |____/| .__/ \\___|\\___|_|  \\__,_|_|  |_| |_| |_|\n" +
		"       |_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "specfarm",
	Short: "SpecFarm - Spec registry and governance for agent orgs",
	Long:  color.CyanString(logo) + "\nA versioned spec registry with feedback loops and org governance.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(specCmd)
	rootCmd.AddCommand(orgsCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(approvalsCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(improveCmd)
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}
