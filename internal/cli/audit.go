package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/SpecFarm/SpecFarm/internal/governance"
)

var (
	auditSession string
	auditLimit   int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the governance audit ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openServices()
		if err != nil {
			return err
		}
		defer s.Close()

		limit := auditLimit
		if limit <= 0 {
			limit = s.cfg.Governance.AuditLimit
		}
		entries, err := s.audit.Entries(cmd.Context(), auditSession, limit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("Audit ledger is empty")
			return nil
		}
		for _, e := range entries {
			decision := e.Decision
			switch decision {
			case governance.DecisionAllowed:
				decision = color.GreenString(decision)
			case governance.DecisionDenied:
				decision = color.RedString(decision)
			case governance.DecisionPendingApproval:
				decision = color.YellowString(decision)
			}
			fmt.Printf("%6d  %s  %-20s %-18s %-18s %s\n",
				e.ID, e.Timestamp.Format("2006-01-02 15:04:05"), e.EntryType, e.ToolName, decision, e.Result)
			for _, v := range e.Violations {
				fmt.Printf("        violation: %s\n", v)
			}
		}
		return nil
	},
}

func init() {
	auditCmd.Flags().StringVar(&auditSession, "session", "", "filter by session id")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 0, "maximum entries (default from config)")
}
