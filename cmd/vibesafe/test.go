package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var testTarget, testHash string

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Re-run the verification gates against an already-checkpointed implementation",
	RunE: func(cmd *cobra.Command, args []string) error {
		if testTarget == "" {
			return fmt.Errorf("vibesafe: --target is required")
		}
		hChk := testHash
		if hChk == "" {
			active, err := activeHashFor(cmd, testTarget)
			if err != nil {
				return err
			}
			hChk = active
		}

		reports, err := orch.Verify(cmd.Context(), testTarget, hChk)
		if err != nil {
			return err
		}

		allOK := true
		for _, r := range reports {
			mark := "PASS"
			if !r.Passed {
				mark = "FAIL"
				allOK = false
			}
			fmt.Printf("%-10s %-4s %s\n", r.Gate, mark, r.Detail)
		}
		if !allOK {
			return fmt.Errorf("vibesafe: %s failed one or more gates at %s", testTarget, hChk)
		}
		return nil
	},
}

func init() {
	testCmd.Flags().StringVar(&testTarget, "target", "", "unit id to test")
	testCmd.Flags().StringVar(&testHash, "hash", "", "checkpoint hash to test (default: the active checkpoint)")
}
