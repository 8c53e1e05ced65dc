// Package agent implements the autonomous scheduler that keeps every
// registered repository synced on its own interval.
package agent

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jwbla/repoman/pkg/config"
	"github.com/jwbla/repoman/pkg/logger"
	"github.com/jwbla/repoman/pkg/metadata"
	"github.com/jwbla/repoman/pkg/syncer"
	"github.com/jwbla/repoman/pkg/tags"
	"github.com/jwbla/repoman/pkg/vault"
)

// DaemonName keys the agent's PID file.
const DaemonName = "agent"

const minSleep = time.Second

// Agent drives the poll/evaluate/sleep cycle.
type Agent struct {
	cfg     *config.Config
	vault   *vault.Store
	meta    *metadata.Store
	syncer  *syncer.Syncer
	tracker *tags.Tracker
}

// New creates an Agent.
func New(cfg *config.Config) *Agent {
	return &Agent{
		cfg:     cfg,
		vault:   vault.NewStore(cfg.VaultDir),
		meta:    metadata.NewStore(cfg.VaultDir),
		syncer:  syncer.New(cfg),
		tracker: tags.New(cfg),
	}
}

// evaluate decides whether a repository is due for a sync and, when it is
// not, how long until it will be. The remaining time is floored at one
// second so a repository on the cusp never produces a busy-poll.
func evaluate(meta *metadata.Metadata, now time.Time, defaultSeconds uint64) (due bool, remaining time.Duration) {
	if meta.LastSync == nil {
		return true, 0
	}
	interval := time.Duration(meta.EffectiveSyncInterval(defaultSeconds)) * time.Second
	elapsed := now.Sub(meta.LastSync.Timestamp)
	if elapsed >= interval {
		return true, 0
	}
	remaining = interval - elapsed
	if remaining < minSleep {
		remaining = minSleep
	}
	return false, remaining
}

// cycleSleep is the adaptive wake-up: the minimum remaining time across
// not-due repositories, or the configured poll interval when nothing is
// pending.
func cycleSleep(remainings []time.Duration, pollSeconds uint64) time.Duration {
	sleep := time.Duration(0)
	for _, r := range remainings {
		if sleep == 0 || r < sleep {
			sleep = r
		}
	}
	if sleep == 0 {
		sleep = time.Duration(pollSeconds) * time.Second
	}
	return sleep
}

// runCycle processes every repository once and returns how long to sleep
// before the next poll. Per-repository failures are logged and skipped; a
// registry load failure aborts only this cycle's loop.
func (a *Agent) runCycle(ctx context.Context) time.Duration {
	defaultSeconds := a.cfg.DefaultSyncInterval
	pollSeconds := a.cfg.AgentPollInterval

	v, err := a.vault.Load()
	if err != nil {
		logger.Errorf("Agent: failed to load vault: %v", err)
		return time.Duration(pollSeconds) * time.Second
	}

	now := time.Now()
	var remainings []time.Duration
	for _, name := range v.Names() {
		if _, err := os.Stat(a.cfg.PristinePath(name)); err != nil {
			continue
		}

		meta, err := a.meta.Load(name)
		if err != nil {
			logger.Warnf("Agent: skipping '%s': cannot load metadata: %v", name, err)
			continue
		}

		due, remaining := evaluate(meta, now, defaultSeconds)
		if !due {
			remainings = append(remainings, remaining)
			continue
		}

		a.syncRepo(ctx, name)
	}

	return cycleSleep(remainings, pollSeconds)
}

// syncRepo runs the tag check and update for one due repository. Tag-check
// failures never block the sync itself.
func (a *Agent) syncRepo(ctx context.Context, name string) {
	logger.Infof("Agent: syncing '%s'", name)

	tag, changed, err := a.tracker.CheckForNewTag(name)
	if err != nil {
		logger.Warnf("Agent: tag check failed for '%s': %v", name, err)
	} else if changed {
		logger.Infof("Agent: new tag for '%s': %s", name, tag)
		if err := a.tracker.UpdateLatestTag(ctx, name, tag); err != nil {
			logger.Warnf("Agent: failed to record tag for '%s': %v", name, err)
		}
	}

	report, err := a.syncer.UpdateRepo(ctx, name, metadata.SyncAuto)
	if err != nil {
		logger.Errorf("Agent: update failed for '%s': %v", name, err)
		return
	}
	for _, clone := range report.Clones {
		if clone.Reason != "" {
			logger.Infof("Agent: clone '%s': %s (%s)", clone.Suffix, clone.State, clone.Reason)
		} else {
			logger.Infof("Agent: clone '%s': %s", clone.Suffix, clone.State)
		}
	}
}

// Run executes the scheduler loop until the context is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	logger.Infof("Agent started (default interval %ds)", a.cfg.DefaultSyncInterval)
	for {
		sleep := a.runCycle(ctx)
		logger.Debugf("Agent: sleeping %s", sleep)
		select {
		case <-ctx.Done():
			logger.Infof("Agent stopping: %v", ctx.Err())
			return nil
		case <-time.After(sleep):
		}
	}
}

// LogFilePath returns the agent's log destination under the configured
// logs directory.
func LogFilePath(cfg *config.Config) string {
	return fmt.Sprintf("%s/agent.log", cfg.LogsDir)
}
