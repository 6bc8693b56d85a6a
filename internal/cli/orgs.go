package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/SpecFarm/SpecFarm/internal/governance"
)

var orgsCmd = &cobra.Command{
	Use:   "orgs",
	Short: "Inspect org permission profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openServices()
		if err != nil {
			return err
		}
		defer s.Close()

		orgs, err := s.orgs.Orgs(cmd.Context())
		if err != nil {
			return err
		}
		if len(orgs) == 0 {
			fmt.Println("No orgs configured (run 'specfarm seed')")
			return nil
		}
		for _, o := range orgs {
			state := color.GreenString("enabled")
			if !o.Enabled {
				state = color.RedString("disabled")
			}
			fmt.Printf("%-18s %-16s %s  %s\n", o.ID, o.Name, state, o.Description)
		}
		return nil
	},
}

var orgsShowCmd = &cobra.Command{
	Use:   "show <org-id>",
	Short: "Show one org's grants and denials",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openServices()
		if err != nil {
			return err
		}
		defer s.Close()

		o, err := s.orgs.Org(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s)\n", o.Name, o.ID)
		fmt.Printf("Models: %s / %s\n", o.ModelPrimary, o.ModelSecondary)
		fmt.Println(o.Description)

		grants, err := s.orgs.Grants(cmd.Context(), o.ID)
		if err != nil {
			return err
		}
		fmt.Println("\nTools:")
		for _, g := range grants {
			note := ""
			if g.RequiresApproval {
				note = color.YellowString(" (approval required)")
			}
			if !g.Enabled {
				note = color.RedString(" (disabled)")
			}
			fmt.Printf("  %s%s\n", g.ToolName, note)
		}

		denials, err := s.orgs.Denials(cmd.Context(), o.ID)
		if err != nil {
			return err
		}
		fmt.Println("\nDenials:")
		for _, d := range denials {
			fmt.Printf("  %-10s %-24s %s\n", d.Type, d.Pattern, d.Reason)
		}
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Apply the default org roster (idempotent)",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openServices()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := governance.Seed(cmd.Context(), s.orgs); err != nil {
			return err
		}
		orgs, err := s.orgs.Orgs(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Seeded %d orgs\n", len(orgs))
		return nil
	},
}

func init() {
	orgsCmd.AddCommand(orgsShowCmd)
}
