package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var diffTarget, diffFrom, diffTo string

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show a unified diff between two of a unit's checkpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		if diffTarget == "" || diffFrom == "" {
			return fmt.Errorf("vibesafe: --target and --from are required")
		}
		to := diffTo
		if to == "" {
			active, err := activeHashFor(cmd, diffTarget)
			if err != nil {
				return err
			}
			to = active
		}

		text, err := orch.Diff(diffTarget, diffFrom, to)
		if err != nil {
			return err
		}
		fmt.Print(text)
		return nil
	},
}

func init() {
	diffCmd.Flags().StringVar(&diffTarget, "target", "", "unit id to diff")
	diffCmd.Flags().StringVar(&diffFrom, "from", "", "earlier checkpoint hash")
	diffCmd.Flags().StringVar(&diffTo, "to", "", "later checkpoint hash (default: the active checkpoint)")
}
