package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zjrosen/actionreg/internal/actions/domain"
	"github.com/zjrosen/actionreg/internal/log"
	"github.com/zjrosen/actionreg/internal/watcher"
)

var (
	watchRevise  bool
	watchInitial bool
)

var actionsWatchCmd = &cobra.Command{
	Use:   "actions:watch DIR",
	Short: "Register definition documents as they change",
	Long: `Watch a directory of definition documents (*.yaml, *.yml) and register
each document when it is written. Bursts of writes are coalesced using
watch.debounce from the config.

Each document is applied in its own transaction; a failing document is
reported and the watch continues.

Examples:
  # Create new actions as documents appear
  actionreg actions:watch ./actions

  # Create or update, registering existing documents first
  actionreg actions:watch ./actions --revise --initial`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	actionsWatchCmd.Flags().BoolVar(&watchRevise, "revise", false, "Create or update instead of create only (overrides watch.revise)")
	actionsWatchCmd.Flags().BoolVar(&watchInitial, "initial", false, "Register existing documents before watching")
	rootCmd.AddCommand(actionsWatchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	revise := cfg.Watch.Revise
	if cmd.Flags().Changed("revise") {
		revise = watchRevise
	}

	ctx, stop := signal.NotifyContext(requestContext(cmd.Context()), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withRuntime(ctx, func(rt *runtime) error {
		w, err := watcher.New(watcher.Config{Dir: dir, DebounceDur: cfg.Watch.Debounce})
		if err != nil {
			return err
		}
		defer func() { _ = w.Stop() }()

		changes, err := w.Start()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		apply := func(path string) {
			document, err := os.ReadFile(path) //nolint:gosec // G304: path is inside the watched directory
			if err != nil {
				log.ErrorErr(log.CatWatcher, "Failed to read definition", err, "path", path)
				return
			}
			var actions []*domain.Action
			if revise {
				actions, err = rt.service.ReviseActions(ctx, string(document))
			} else {
				actions, err = rt.service.RegisterActions(ctx, string(document))
			}
			if err != nil {
				log.ErrorErr(log.CatWatcher, "Failed to register definition", err, "path", path)
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", filepath.Base(path), err)
				return
			}
			log.Info(log.CatWatcher, "Registered definition", "path", path, "count", len(actions))
		}

		if watchInitial {
			if err := applyExisting(dir, apply); err != nil {
				return err
			}
		}

		_, _ = fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", dir)

		g, gctx := errgroup.WithContext(ctx)
		events := rt.events.Subscribe(gctx)
		g.Go(func() error {
			for event := range events {
				_, _ = fmt.Fprintf(out, "%s %s (id %d)\n", event.Type, event.Payload.Name, event.Payload.ID)
			}
			return nil
		})
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case paths := <-changes:
					for _, p := range paths {
						apply(p)
					}
				}
			}
		})
		return g.Wait()
	})
}

// applyExisting calls apply for every definition document already in dir,
// in name order.
func applyExisting(dir string, apply func(path string)) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !watcher.IsDefinitionFile(e.Name()) {
			continue
		}
		apply(filepath.Join(dir, e.Name()))
	}
	return nil
}
