package app

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jwbla/repoman/pkg/config"
)

// loadConfig loads the configuration and makes sure the data directories
// exist.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create data directories: %w", err)
	}
	return cfg, nil
}

// runBatch dispatches one worker per repository name and tallies the
// outcomes. A single worker's failure never cancels its siblings;
// per-item messages are printed as they complete.
func runBatch(names []string, verb string, action func(name string) error) (succeeded, failed int) {
	var (
		mu    sync.Mutex
		group errgroup.Group
	)
	for _, name := range names {
		name := name
		group.Go(func() error {
			err := action(name)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				fmt.Printf("  ✗ %s: %v\n", name, err)
			} else {
				succeeded++
				fmt.Printf("  ✓ %s %s\n", name, verb)
			}
			return nil
		})
	}
	_ = group.Wait()
	return succeeded, failed
}

// printTally summarizes a batch run.
func printTally(succeeded, failed int) {
	if failed == 0 {
		fmt.Printf("%d succeeded\n", succeeded)
		return
	}
	fmt.Printf("%d succeeded, %d failed\n", succeeded, failed)
}
