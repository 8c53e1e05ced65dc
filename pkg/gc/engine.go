// Package gc finds clones whose tip commit has aged past a threshold,
// removes them, and compacts mirror object storage.
package gc

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jwbla/repoman/pkg/config"
	"github.com/jwbla/repoman/pkg/errors"
	"github.com/jwbla/repoman/pkg/git"
	"github.com/jwbla/repoman/pkg/logger"
	"github.com/jwbla/repoman/pkg/metadata"
	"github.com/jwbla/repoman/pkg/vault"
)

// StaleClone identifies a clone whose head commit is older than the
// threshold.
type StaleClone struct {
	Repo     string
	Suffix   string
	Path     string
	HeadTime time.Time
}

// Report describes one GC pass. Dry runs fill the same fields without
// touching the filesystem.
type Report struct {
	DryRun           bool
	Stale            []StaleClone
	Removed          []StaleClone
	CompactedMirrors int
}

// Engine runs staleness detection and garbage collection.
type Engine struct {
	cfg   *config.Config
	vault *vault.Store
	meta  *metadata.Store
	git   git.Client
}

// New creates an Engine backed by the default go-git client.
func New(cfg *config.Config) *Engine {
	return NewWithClient(cfg, git.NewDefaultClient())
}

// NewWithClient creates an Engine with an explicit backend client.
func NewWithClient(cfg *config.Config, client git.Client) *Engine {
	return &Engine{
		cfg:   cfg,
		vault: vault.NewStore(cfg.VaultDir),
		meta:  metadata.NewStore(cfg.VaultDir),
		git:   client,
	}
}

// isStale reports whether a head commit timestamp is strictly older than
// now minus the threshold. A commit exactly at the boundary is kept.
func isStale(headTime, now time.Time, days uint) bool {
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)
	return headTime.Before(cutoff)
}

// FindStaleClones walks every repository's clones and flags the ones whose
// head commit is older than days.
func (e *Engine) FindStaleClones(days uint) ([]StaleClone, error) {
	v, err := e.vault.Load()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var stale []StaleClone
	for _, name := range v.Names() {
		meta, err := e.meta.Load(name)
		if err != nil {
			logger.Warnf("Skipping '%s': cannot load metadata: %v", name, err)
			continue
		}
		for _, clone := range meta.Clones {
			if _, err := os.Stat(clone.Path); err != nil {
				continue
			}
			headTime, err := e.git.HeadCommitTime(clone.Path)
			if err != nil {
				logger.Warnf("Skipping clone '%s': cannot read head commit: %v", clone.Name, err)
				continue
			}
			if isStale(headTime, now, days) {
				stale = append(stale, StaleClone{
					Repo:     name,
					Suffix:   clone.Name,
					Path:     clone.Path,
					HeadTime: headTime,
				})
			}
		}
	}
	return stale, nil
}

// Run computes the stale set and, unless dryRun, compacts every existing
// mirror and removes the stale clones.
func (e *Engine) Run(ctx context.Context, days uint, dryRun bool) (*Report, error) {
	stale, err := e.FindStaleClones(days)
	if err != nil {
		return nil, err
	}

	report := &Report{DryRun: dryRun, Stale: stale}
	if dryRun {
		return report, nil
	}

	v, err := e.vault.Load()
	if err != nil {
		return nil, err
	}
	for _, name := range v.Names() {
		pristinePath := e.cfg.PristinePath(name)
		if _, err := os.Stat(pristinePath); err != nil {
			continue
		}
		if err := e.git.Repack(pristinePath); err != nil {
			logger.Warnf("Failed to compact mirror for '%s': %v", name, err)
			continue
		}
		report.CompactedMirrors++
	}

	report.Removed, err = e.removeStale(ctx, stale)
	return report, err
}

// DestroyStale removes stale clones without compacting mirrors.
func (e *Engine) DestroyStale(ctx context.Context, days uint) ([]StaleClone, error) {
	stale, err := e.FindStaleClones(days)
	if err != nil {
		return nil, err
	}
	return e.removeStale(ctx, stale)
}

func (e *Engine) removeStale(ctx context.Context, stale []StaleClone) ([]StaleClone, error) {
	var removed []StaleClone
	for _, candidate := range stale {
		if err := os.RemoveAll(candidate.Path); err != nil {
			logger.Warnf("Failed to remove stale clone '%s': %v", candidate.Suffix, err)
			continue
		}
		err := e.meta.Update(ctx, candidate.Repo, func(meta *metadata.Metadata) error {
			meta.RemoveClone(candidate.Suffix)
			return nil
		})
		if err != nil {
			return removed, errors.NewStorageError(
				fmt.Sprintf("failed to update metadata for '%s' after removing clone '%s'", candidate.Repo, candidate.Suffix), err)
		}
		removed = append(removed, candidate)
	}
	return removed, nil
}
