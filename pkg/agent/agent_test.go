package agent

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwbla/repoman/pkg/config"
	"github.com/jwbla/repoman/pkg/metadata"
	"github.com/jwbla/repoman/pkg/vault"
)

func interval(seconds uint64) *uint64 { return &seconds }

func TestEvaluate(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	const defaultSeconds = 3600

	tests := []struct {
		name          string
		lastSync      *metadata.SyncInfo
		syncInterval  *uint64
		wantDue       bool
		wantRemaining time.Duration
	}{
		{
			name:    "never synced is due",
			wantDue: true,
		},
		{
			name:     "elapsed equals interval is due",
			lastSync: &metadata.SyncInfo{Timestamp: now.Add(-time.Hour), Kind: metadata.SyncAuto},
			wantDue:  true,
		},
		{
			name:     "elapsed beyond interval is due",
			lastSync: &metadata.SyncInfo{Timestamp: now.Add(-2 * time.Hour), Kind: metadata.SyncAuto},
			wantDue:  true,
		},
		{
			name:          "within interval reports remaining",
			lastSync:      &metadata.SyncInfo{Timestamp: now.Add(-15 * time.Minute), Kind: metadata.SyncAuto},
			wantDue:       false,
			wantRemaining: 45 * time.Minute,
		},
		{
			name:          "per-repo interval overrides default",
			lastSync:      &metadata.SyncInfo{Timestamp: now.Add(-30 * time.Second), Kind: metadata.SyncAuto},
			syncInterval:  interval(60),
			wantDue:       false,
			wantRemaining: 30 * time.Second,
		},
		{
			name:          "remaining floored at one second",
			lastSync:      &metadata.SyncInfo{Timestamp: now.Add(-3600*time.Second + 200*time.Millisecond), Kind: metadata.SyncAuto},
			wantDue:       false,
			wantRemaining: time.Second,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			meta := metadata.New([]string{"https://example.com/r.git"})
			meta.LastSync = tt.lastSync
			meta.SyncInterval = tt.syncInterval

			due, remaining := evaluate(meta, now, defaultSeconds)
			assert.Equal(t, tt.wantDue, due)
			if !tt.wantDue {
				assert.Equal(t, tt.wantRemaining, remaining)
			}
		})
	}
}

func TestCycleSleep(t *testing.T) {
	t.Parallel()
	const pollSeconds = 3600

	// Minimum across pending repositories wins.
	sleep := cycleSleep([]time.Duration{45 * time.Minute, 10 * time.Second, time.Hour}, pollSeconds)
	assert.Equal(t, 10*time.Second, sleep)

	// Nothing pending: fall back to the poll interval.
	sleep = cycleSleep(nil, pollSeconds)
	assert.Equal(t, time.Hour, sleep)
}

func TestRunCycleEmptyRegistry(t *testing.T) {
	root := t.TempDir()
	cfg := &config.Config{
		VaultDir:            filepath.Join(root, "vault"),
		PristinesDir:        filepath.Join(root, "pristines"),
		ClonesDir:           filepath.Join(root, "clones"),
		LogsDir:             filepath.Join(root, "logs"),
		DefaultSyncInterval: 3600,
		AgentPollInterval:   1800,
	}
	require.NoError(t, cfg.EnsureDirectories())

	// The poll interval, not the sync default, drives the idle sleep.
	sleep := New(cfg).runCycle(context.Background())
	assert.Equal(t, 30*time.Minute, sleep)
}

func TestRunCycleSkipsReposWithoutMirror(t *testing.T) {
	root := t.TempDir()
	cfg := &config.Config{
		VaultDir:            filepath.Join(root, "vault"),
		PristinesDir:        filepath.Join(root, "pristines"),
		ClonesDir:           filepath.Join(root, "clones"),
		LogsDir:             filepath.Join(root, "logs"),
		DefaultSyncInterval: 3600,
		AgentPollInterval:   1800,
	}
	require.NoError(t, cfg.EnsureDirectories())

	ctx := context.Background()
	require.NoError(t, vault.NewStore(cfg.VaultDir).Update(ctx, func(v *vault.Vault) error {
		return v.Add("widget", "https://example.com/widget.git")
	}))
	require.NoError(t, metadata.NewStore(cfg.VaultDir).Save("widget",
		metadata.New([]string{"https://example.com/widget.git"})))

	// No mirror on disk: the repository is skipped entirely and the sleep
	// falls back to the poll interval.
	sleep := New(cfg).runCycle(ctx)
	assert.Equal(t, 30*time.Minute, sleep)
}
