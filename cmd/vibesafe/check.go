package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Re-verify the checkpoint of every active unit and report every other unit as not clean",
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		statuses, err := orch.Status(cmd.Context())
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "UNIT\tSTATE\tRESULT\tDETAIL")

		failures := 0
		for _, st := range statuses {
			switch st.State {
			case "active":
				reports, err := orch.Verify(cmd.Context(), st.UnitID, st.ActiveHash)
				if err != nil {
					failures++
					fmt.Fprintf(tw, "%s\tactive\tERROR\t%v\n", st.UnitID, err)
					continue
				}
				ok := true
				for _, r := range reports {
					if !r.Passed {
						ok = false
						fmt.Fprintf(tw, "%s\tactive\tFAIL\t%s: %s\n", st.UnitID, r.Gate, r.Detail)
					}
				}
				if ok {
					fmt.Fprintf(tw, "%s\tactive\tOK\t-\n", st.UnitID)
				} else {
					failures++
				}
			default:
				failures++
				fmt.Fprintf(tw, "%s\t%s\tSKIP\tonly units in state active are re-verified\n", st.UnitID, st.State)
			}
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		fmt.Printf("checked %d unit(s) in %s\n", len(statuses), durationSince(start))
		if failures > 0 {
			return fmt.Errorf("vibesafe: %d unit(s) are not clean", failures)
		}
		return nil
	},
}
