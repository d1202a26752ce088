package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vibesafe/internal/logging"
)

var watch bool
var force bool

var compileCmd = &cobra.Command{
	Use:   "compile [unit-id...]",
	Short: "Generate, validate, verify, and activate implementations for the given units (or every scanned unit)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if watch {
			return runCompileWatch(cmd.Context(), args)
		}
		return compileTargets(cmd.Context(), args, force)
	},
}

func init() {
	compileCmd.Flags().BoolVar(&watch, "watch", false, "recompile the given units (or every unit) whenever a .go source file changes")
	compileCmd.Flags().BoolVar(&force, "force", false, "bypass the provider cache and request a fresh completion")
}

func compileTargets(ctx context.Context, targets []string, force bool) error {
	unitIDs := targets
	if len(unitIDs) == 0 {
		specs, err := orch.ScanAll(ctx)
		if err != nil {
			return err
		}
		for _, s := range specs {
			unitIDs = append(unitIDs, s.UnitID)
		}
	}

	var failed []string
	for _, id := range unitIDs {
		fmt.Printf("compiling %s...\n", id)
		if err := orch.CompileForce(ctx, id, force); err != nil {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", id, err)
			failed = append(failed, id)
			continue
		}
		fmt.Printf("  %s: activated\n", id)
	}
	if len(failed) > 0 {
		return fmt.Errorf("vibesafe: %d unit(s) failed to compile: %v", len(failed), failed)
	}
	return nil
}

// runCompileWatch recompiles on every source change under the project's
// configured roots until interrupted, debouncing rapid saves the way the
// pack's own file watchers do.
func runCompileWatch(parent context.Context, targets []string) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("vibesafe: start watcher: %w", err)
	}
	defer watcher.Close()

	for _, root := range cfg.Paths.Sources {
		abs := cfg.ResolvePath(root)
		if err := watcher.Add(abs); err != nil {
			logging.L().Warn("could not watch directory", zap.String("dir", abs), zap.Error(err))
		}
	}

	debounce := 500 * time.Millisecond
	var pending bool
	timer := time.NewTimer(24 * time.Hour)
	if !timer.Stop() {
		<-timer.C
	}

	fmt.Println("watching for changes; press Ctrl+C to stop")
	if err := compileTargets(ctx, targets, force); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(ev.Name) != ".go" {
				continue
			}
			if !pending {
				pending = true
				timer.Reset(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.L().Warn("watcher error", zap.Error(err))
		case <-timer.C:
			pending = false
			if err := compileTargets(ctx, targets, force); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		}
	}
}
