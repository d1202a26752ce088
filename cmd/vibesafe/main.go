// Command vibesafe drives the spec -> hash -> checkpoint -> verify ->
// activate pipeline from the shell: scanning decorated stubs, compiling
// them against an LLM provider, running the verification gates, and
// reporting derived status.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vibesafe/internal/audit"
	"vibesafe/internal/checkpoint"
	"vibesafe/internal/config"
	"vibesafe/internal/logging"
	"vibesafe/internal/orchestrator"
	"vibesafe/internal/vserrors"
)

var (
	configPath string
	verbose    bool

	cfg  *config.Config
	orch *orchestrator.Orchestrator
	db   *audit.DB
)

var rootCmd = &cobra.Command{
	Use:   "vibesafe",
	Short: "Turn typed, example-bearing stubs into hash-locked LLM implementations",
	Long: `vibesafe extracts vibesafe.Handled() stubs from Go source, generates an
implementation for each against an LLM provider, and hash-locks the result
so drift between a unit's spec and its checkpoint is caught at load time
instead of silently served.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "init" {
			return nil
		}

		level := "info"
		if verbose {
			level = "debug"
		}
		logging.Init(level, false)

		var err error
		if configPath != "" {
			cfg, err = config.LoadFile(configPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("vibesafe: %w", err)
		}

		store := checkpoint.NewStore(cfg.ResolvePath(filepath.Dir(cfg.Paths.Index)))

		dbPath := cfg.ResolvePath(filepath.Join(filepath.Dir(cfg.Paths.Index), "audit.db"))
		db, err = audit.Open(dbPath)
		if err != nil {
			logging.L().Warn("could not open audit database, run history will not be recorded", zap.Error(err))
			db = nil
		}

		orch, err = orchestrator.New(cfg, store, db)
		if err != nil {
			return fmt.Errorf("vibesafe: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if orch != nil {
			orch.Close()
		}
		if db != nil {
			_ = db.Close()
		}
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to vibesafe.toml (default: search upward from cwd)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	rootCmd.SilenceErrors = true
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(exitCodeFor(err))
}

// exitCodeFor maps an error to the shell exit code vibesafe promises its
// callers: 0 success, 1 an expected failure (gate/validation/drift), 2 a
// usage error, 3 a provider error, 4 an integrity violation.
func exitCodeFor(err error) int {
	var (
		specErr       *vserrors.SpecError
		configErr     *vserrors.ConfigError
		providerErr   *vserrors.ProviderError
		integrityErr  *vserrors.IntegrityError
		validationErr *vserrors.ValidationError
		gateErr       *vserrors.GateFailure
		storageErr    *vserrors.StorageError
	)
	switch {
	case errors.As(err, &integrityErr):
		return 4
	case errors.As(err, &providerErr):
		return 3
	case errors.As(err, &configErr), errors.As(err, &specErr):
		return 2
	case errors.As(err, &validationErr), errors.As(err, &gateErr), errors.As(err, &storageErr):
		return 1
	}
	return 1
}

// durationSince renders an elapsed duration the way status/check tables
// print it: short, no sub-millisecond noise.
func durationSince(t time.Time) string {
	return time.Since(t).Round(time.Millisecond).String()
}
