package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var saveTarget, saveHash string

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Activate a specific checkpoint hash for a unit",
	RunE: func(cmd *cobra.Command, args []string) error {
		if saveTarget == "" || saveHash == "" {
			return fmt.Errorf("vibesafe: --target and --hash are both required")
		}
		if err := orch.Save(cmd.Context(), saveTarget, saveHash); err != nil {
			return err
		}
		fmt.Printf("%s: activated %s\n", saveTarget, saveHash)
		return nil
	},
}

func init() {
	saveCmd.Flags().StringVar(&saveTarget, "target", "", "unit id to activate a checkpoint for")
	saveCmd.Flags().StringVar(&saveHash, "hash", "", "checkpoint hash to activate")
}

// activeHashFor looks up unitID's currently active checkpoint hash, for
// commands that default to operating on "whatever's active" when --hash
// is omitted.
func activeHashFor(cmd *cobra.Command, unitID string) (string, error) {
	statuses, err := orch.Status(cmd.Context())
	if err != nil {
		return "", err
	}
	for _, st := range statuses {
		if st.UnitID == unitID {
			if st.ActiveHash == "" {
				return "", fmt.Errorf("vibesafe: %s has no active checkpoint", unitID)
			}
			return st.ActiveHash, nil
		}
	}
	return "", fmt.Errorf("vibesafe: unknown unit %s", unitID)
}
