package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SpecFarm/SpecFarm/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ SpecFarm Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show registry status",
	RunE: func(cmd *cobra.Command, args []string) error {
		printHeader("📊 SpecFarm Status")
		fmt.Printf("Version: %s\n", version)

		configPath, err := config.ConfigPath()
		if err == nil {
			if _, err := os.Stat(configPath); err == nil {
				fmt.Println("Config:  ✓ Found (" + configPath + ")")
			} else {
				fmt.Println("Config:  ✗ Not found (defaults in effect)")
			}
		}

		s, err := openServices()
		if err != nil {
			return err
		}
		defer s.Close()

		fmt.Println("Database: " + s.cfg.DBPath())
		if missing := s.caps.Missing(); len(missing) > 0 {
			for _, m := range missing {
				fmt.Printf("Capability: ✗ %s unavailable\n", m)
			}
		} else {
			fmt.Println("Capabilities: ✓ all available")
		}

		stats, err := s.registry.Stats()
		if err != nil {
			return err
		}
		if len(stats) == 0 {
			fmt.Println("Specs:   none")
		}
		for kind, st := range stats {
			fmt.Printf("Specs:   %-14s %d total, %d active, %d draft, %d deprecated\n",
				kind, st.Total, st.Active, st.Draft, st.Deprecated)
		}

		orgs, err := s.orgs.Orgs(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Orgs:    %d configured\n", len(orgs))

		pending, err := s.approvals.Pending(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Approvals: %d pending\n", len(pending))
		fmt.Println("Status:  Ready")
		return nil
	},
}
