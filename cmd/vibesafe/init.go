package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vibesafe/internal/orchestrator"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Scaffold a vibesafe.toml and checkpoint layout in the given directory (default: cwd)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) == 1 {
			root = args[0]
		}
		if err := orchestrator.Init(root); err != nil {
			return err
		}
		fmt.Printf("initialized vibesafe project in %s\n", root)
		return nil
	},
}
