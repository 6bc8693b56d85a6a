package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	improveMinUsage int
	improveMaxRate  float64
	learningsLimit  int
)

var improveCmd = &cobra.Command{
	Use:   "improve",
	Short: "Drive the improvement loop",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var improveCandidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "List active specs performing below the success-rate ceiling",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openServices()
		if err != nil {
			return err
		}
		defer s.Close()

		cands, err := s.feedback.NeedingImprovement(improveMinUsage, improveMaxRate)
		if err != nil {
			return err
		}
		if len(cands) == 0 {
			fmt.Println("No specs need improvement")
			return nil
		}
		for _, c := range cands {
			fmt.Printf("%4d  %-14s %-24s uses=%-4d rate=%.2f\n",
				c.SpecID, c.Kind, c.Name, c.UseCount, c.SuccessRate)
		}
		return nil
	},
}

var improveLearningsCmd = &cobra.Command{
	Use:   "learnings",
	Short: "Show the highest-confidence learnings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openServices()
		if err != nil {
			return err
		}
		defer s.Close()

		learnings, err := s.feedback.TopLearnings(learningsLimit)
		if err != nil {
			return err
		}
		if len(learnings) == 0 {
			fmt.Println("No actionable learnings yet")
			return nil
		}
		for _, l := range learnings {
			fmt.Printf("[%.2f] %-10s %-12s %s\n", l.Confidence, l.Type, l.Category, l.Description)
		}
		return nil
	},
}

func init() {
	improveCandidatesCmd.Flags().IntVar(&improveMinUsage, "min-usage", 0, "minimum use count (default from config)")
	improveCandidatesCmd.Flags().Float64Var(&improveMaxRate, "max-rate", 0, "success-rate ceiling (default from config)")
	improveLearningsCmd.Flags().IntVar(&learningsLimit, "limit", 10, "maximum learnings")
	improveCmd.AddCommand(improveCandidatesCmd)
	improveCmd.AddCommand(improveLearningsCmd)
}
