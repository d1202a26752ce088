package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show every unit's derived state: uncompiled, drifted, active, or gate-failing",
	RunE: func(cmd *cobra.Command, args []string) error {
		statuses, err := orch.Status(cmd.Context())
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "UNIT\tSTATE\tACTIVE\tEXAMPLES\tFAILING GATES")
		for _, st := range statuses {
			active := st.ActiveHash
			if active == "" {
				active = "-"
			} else if len(active) > 12 {
				active = active[:12]
			}
			gates := "-"
			if len(st.FailingGates) > 0 {
				gates = strings.Join(st.FailingGates, ",")
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", st.UnitID, st.State, active, st.ExampleCount, gates)
		}
		return tw.Flush()
	},
}
