package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var memoryLimit int

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect session conversation memory",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var memoryRecallCmd = &cobra.Command{
	Use:   "recall <session-id>",
	Short: "Show a session's most important turns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openServices()
		if err != nil {
			return err
		}
		defer s.Close()

		msgs, err := s.retrieval.Recall(cmd.Context(), args[0], memoryLimit)
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			fmt.Println("No memory for session", args[0])
			return nil
		}
		for _, m := range msgs {
			fmt.Printf("[%.2f] %-9s %s\n", m.Importance, m.Role, m.Content)
		}
		return nil
	},
}

var memoryForgetCmd = &cobra.Command{
	Use:   "forget <session-id>",
	Short: "Delete a session's memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openServices()
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := s.retrieval.ForgetSession(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Forgot %d turns for session %s\n", n, args[0])
		return nil
	},
}

func init() {
	memoryRecallCmd.Flags().IntVar(&memoryLimit, "limit", 20, "maximum turns")
	memoryCmd.AddCommand(memoryRecallCmd)
	memoryCmd.AddCommand(memoryForgetCmd)
}
