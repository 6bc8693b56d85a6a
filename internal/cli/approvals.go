package cli

import (
	"fmt"
	"os"
	"os/user"

	"github.com/spf13/cobra"
)

var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "List and resolve pending approvals",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openServices()
		if err != nil {
			return err
		}
		defer s.Close()

		pending, err := s.approvals.Pending(cmd.Context())
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Println("No pending approvals")
			return nil
		}
		for _, a := range pending {
			fmt.Printf("%s  %-18s %-18s %s\n", a.ApprovalID, a.OrgID, a.ToolName, a.Reason)
		}
		return nil
	},
}

var approveBy string

var approvalsApproveCmd = &cobra.Command{
	Use:   "approve <approval-id>",
	Short: "Approve a pending tool call",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return resolveApproval(cmd, args[0], true)
	},
}

var approvalsDenyCmd = &cobra.Command{
	Use:   "deny <approval-id>",
	Short: "Deny a pending tool call",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return resolveApproval(cmd, args[0], false)
	},
}

func resolveApproval(cmd *cobra.Command, id string, approved bool) error {
	s, err := openServices()
	if err != nil {
		return err
	}
	defer s.Close()

	by := approveBy
	if by == "" {
		if u, err := user.Current(); err == nil {
			by = u.Username
		} else {
			by = os.Getenv("USER")
		}
	}
	if err := s.approvals.Resolve(cmd.Context(), id, approved, by); err != nil {
		return err
	}
	verdict := "denied"
	if approved {
		verdict = "approved"
	}
	fmt.Printf("Approval %s %s by %s\n", id, verdict, by)
	return nil
}

func init() {
	approvalsApproveCmd.Flags().StringVar(&approveBy, "by", "", "resolver identity (default current user)")
	approvalsDenyCmd.Flags().StringVar(&approveBy, "by", "", "resolver identity (default current user)")
	approvalsCmd.AddCommand(approvalsApproveCmd)
	approvalsCmd.AddCommand(approvalsDenyCmd)
}
