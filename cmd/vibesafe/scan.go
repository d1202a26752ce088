package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List every decorated unit under the project's source roots",
	RunE: func(cmd *cobra.Command, args []string) error {
		specs, err := orch.ScanAll(cmd.Context())
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "UNIT\tKIND\tPROVIDER\tEXAMPLES")
		for _, s := range specs {
			provider := s.Options.Provider
			if provider == "" {
				provider = "default"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", s.UnitID, s.Kind, provider, len(s.Examples))
		}
		return tw.Flush()
	},
}
