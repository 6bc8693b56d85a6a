package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SpecFarm/SpecFarm/internal/registry"
)

var specCmd = &cobra.Command{
	Use:   "spec",
	Short: "Manage spec objects",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var (
	specKind    string
	specVersion string
	specStatus  string
	specSummary string
	specDoc     string
	specPayload string
	specLimit   int
)

var specCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a spec object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openServices()
		if err != nil {
			return err
		}
		defer s.Close()

		var payload map[string]any
		if specPayload != "" {
			if err := json.Unmarshal([]byte(specPayload), &payload); err != nil {
				return fmt.Errorf("payload must be a JSON object: %w", err)
			}
		}
		id, err := s.registry.Create(registry.CreateInput{
			Kind:    specKind,
			Name:    args[0],
			Version: specVersion,
			Status:  specStatus,
			Summary: specSummary,
			Doc:     specDoc,
			Payload: payload,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created spec %d (%s/%s)\n", id, specKind, args[0])
		return nil
	},
}

var specGetCmd = &cobra.Command{
	Use:   "get <id | kind/name[@version]>",
	Short: "Show one spec",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openServices()
		if err != nil {
			return err
		}
		defer s.Close()

		sp, err := resolveSpec(s, args[0])
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(sp, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var specListCmd = &cobra.Command{
	Use:   "list",
	Short: "List specs",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openServices()
		if err != nil {
			return err
		}
		defer s.Close()

		sums, err := s.registry.List(specKind, specStatus, specLimit)
		if err != nil {
			return err
		}
		printSummaries(sums)
		return nil
	},
}

var specSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search specs by name, summary, and docs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openServices()
		if err != nil {
			return err
		}
		defer s.Close()

		sums, err := s.registry.Search(args[0], specLimit)
		if err != nil {
			return err
		}
		printSummaries(sums)
		return nil
	},
}

var specLinkCmd = &cobra.Command{
	Use:   "link <from-id> <rel> <to-id>",
	Short: "Link two specs (uses, extends, requires, implements, derived_from)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openServices()
		if err != nil {
			return err
		}
		defer s.Close()

		fromID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("from-id must be numeric: %w", err)
		}
		toID, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("to-id must be numeric: %w", err)
		}
		if err := s.registry.Link(fromID, toID, args[1], nil); err != nil {
			return err
		}
		fmt.Printf("Linked %d -%s-> %d\n", fromID, args[1], toID)
		return nil
	},
}

var specRelatedCmd = &cobra.Command{
	Use:   "related <id>",
	Short: "Show a spec's relationship edges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openServices()
		if err != nil {
			return err
		}
		defer s.Close()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("id must be numeric: %w", err)
		}
		rels, err := s.registry.Related(id)
		if err != nil {
			return err
		}
		if len(rels) == 0 {
			fmt.Println("No relationships")
			return nil
		}
		for _, r := range rels {
			arrow := "->"
			if r.Direction == "incoming" {
				arrow = "<-"
			}
			fmt.Printf("%s %-12s %d %s/%s@%s (%s)\n",
				arrow, r.RelType, r.Neighbor.ID, r.Neighbor.Kind, r.Neighbor.Name, r.Neighbor.Version, r.Neighbor.Status)
		}
		return nil
	},
}

var specDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a spec and its doc and payload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openServices()
		if err != nil {
			return err
		}
		defer s.Close()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("id must be numeric: %w", err)
		}
		if err := s.registry.Delete(id); err != nil {
			return err
		}
		fmt.Printf("Deleted spec %d\n", id)
		return nil
	},
}

// resolveSpec accepts a numeric id or a "kind/name[@version]" reference.
func resolveSpec(s *services, ref string) (*registry.Spec, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return s.registry.Get(id)
	}
	kind, rest, ok := strings.Cut(ref, "/")
	if !ok {
		return nil, fmt.Errorf("expected numeric id or kind/name[@version], got %q", ref)
	}
	name, version, _ := strings.Cut(rest, "@")
	return s.registry.GetByName(kind, name, version)
}

func printSummaries(sums []registry.Summary) {
	if len(sums) == 0 {
		fmt.Println("No specs found")
		return
	}
	for _, sum := range sums {
		fmt.Printf("%4d  %-14s %-24s %-8s %-10s %s\n",
			sum.ID, sum.Kind, sum.Name, sum.Version, sum.Status, sum.Summary)
	}
}

func init() {
	specCreateCmd.Flags().StringVar(&specKind, "kind", "", "spec kind (agent, skill, schema, task_template, ...)")
	specCreateCmd.Flags().StringVar(&specVersion, "version", "", "version (default 1.0.0)")
	specCreateCmd.Flags().StringVar(&specStatus, "status", "", "status (default draft)")
	specCreateCmd.Flags().StringVar(&specSummary, "summary", "", "one-line summary")
	specCreateCmd.Flags().StringVar(&specDoc, "doc", "", "long-form documentation")
	specCreateCmd.Flags().StringVar(&specPayload, "payload", "", "structured payload as JSON")
	specCreateCmd.MarkFlagRequired("kind")

	specListCmd.Flags().StringVar(&specKind, "kind", "", "filter by kind")
	specListCmd.Flags().StringVar(&specStatus, "status", "", "filter by status")
	specListCmd.Flags().IntVar(&specLimit, "limit", 50, "maximum rows")
	specSearchCmd.Flags().IntVar(&specLimit, "limit", 20, "maximum rows")

	specCmd.AddCommand(specCreateCmd)
	specCmd.AddCommand(specGetCmd)
	specCmd.AddCommand(specListCmd)
	specCmd.AddCommand(specSearchCmd)
	specCmd.AddCommand(specLinkCmd)
	specCmd.AddCommand(specRelatedCmd)
	specCmd.AddCommand(specDeleteCmd)
}
