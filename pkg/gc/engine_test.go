package gc

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwbla/repoman/pkg/config"
	"github.com/jwbla/repoman/pkg/lifecycle"
	"github.com/jwbla/repoman/pkg/metadata"
	"github.com/jwbla/repoman/pkg/vault"
)

func TestIsStaleBoundary(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	// Exactly at the boundary: kept.
	exact := now.Add(-30 * 24 * time.Hour)
	assert.False(t, isStale(exact, now, 30))

	// One second older: flagged.
	assert.True(t, isStale(exact.Add(-time.Second), now, 30))

	// One second younger: kept.
	assert.False(t, isStale(exact.Add(time.Second), now, 30))
}

func newFixture(t *testing.T, commitWhen time.Time) (*config.Config, *Engine, *lifecycle.CloneResult) {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		VaultDir:            filepath.Join(root, "vault"),
		PristinesDir:        filepath.Join(root, "pristines"),
		ClonesDir:           filepath.Join(root, "clones"),
		LogsDir:             filepath.Join(root, "logs"),
		DefaultSyncInterval: config.DefaultSyncIntervalSeconds,
	}
	require.NoError(t, cfg.EnsureDirectories())

	source := t.TempDir()
	repo, err := gogit.PlainInit(source, false)
	require.NoError(t, err)
	worktree, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(source, "README.md"), []byte("hi\n"), 0600))
	_, err = worktree.Add("README.md")
	require.NoError(t, err)
	sig := &object.Signature{Name: "test", Email: "test@example.com", When: commitWhen}
	_, err = worktree.Commit("initial", &gogit.CommitOptions{Author: sig, Committer: sig})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, vault.NewStore(cfg.VaultDir).Update(ctx, func(v *vault.Vault) error {
		return v.Add("widget", source)
	}))
	require.NoError(t, metadata.NewStore(cfg.VaultDir).Save("widget", metadata.New([]string{source})))

	mgr := lifecycle.NewManager(cfg)
	require.NoError(t, mgr.InitPristine(ctx, "widget"))
	clone, err := mgr.Clone(ctx, "widget", "dev", "")
	require.NoError(t, err)
	return cfg, New(cfg), clone
}

func TestFindStaleClones(t *testing.T) {
	_, engine, clone := newFixture(t, time.Now().AddDate(0, 0, -60))

	stale, err := engine.FindStaleClones(30)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "widget", stale[0].Repo)
	assert.Equal(t, "dev", stale[0].Suffix)
	assert.Equal(t, clone.Path, stale[0].Path)

	// A generous threshold keeps it.
	stale, err = engine.FindStaleClones(90)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestRunDryRun(t *testing.T) {
	cfg, engine, clone := newFixture(t, time.Now().AddDate(0, 0, -60))

	report, err := engine.Run(context.Background(), 30, true)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	require.Len(t, report.Stale, 1)
	assert.Empty(t, report.Removed)
	assert.Zero(t, report.CompactedMirrors)

	// Nothing was touched.
	_, err = os.Stat(clone.Path)
	assert.NoError(t, err)
	meta, err := metadata.NewStore(cfg.VaultDir).Load("widget")
	require.NoError(t, err)
	assert.Len(t, meta.Clones, 1)
}

func TestRunRemovesStaleClones(t *testing.T) {
	cfg, engine, clone := newFixture(t, time.Now().AddDate(0, 0, -60))

	report, err := engine.Run(context.Background(), 30, false)
	require.NoError(t, err)
	assert.False(t, report.DryRun)
	require.Len(t, report.Removed, 1)
	assert.Equal(t, 1, report.CompactedMirrors)

	_, err = os.Stat(clone.Path)
	assert.True(t, os.IsNotExist(err))
	meta, err := metadata.NewStore(cfg.VaultDir).Load("widget")
	require.NoError(t, err)
	assert.Empty(t, meta.Clones)
}

func TestDestroyStaleSkipsCompaction(t *testing.T) {
	cfg, engine, clone := newFixture(t, time.Now().AddDate(0, 0, -60))

	removed, err := engine.DestroyStale(context.Background(), 30)
	require.NoError(t, err)
	require.Len(t, removed, 1)

	_, err = os.Stat(clone.Path)
	assert.True(t, os.IsNotExist(err))
	meta, err := metadata.NewStore(cfg.VaultDir).Load("widget")
	require.NoError(t, err)
	assert.Empty(t, meta.Clones)
}

func TestRunWithFreshClones(t *testing.T) {
	_, engine, clone := newFixture(t, time.Now())

	report, err := engine.Run(context.Background(), 30, false)
	require.NoError(t, err)
	assert.Empty(t, report.Stale)
	assert.Empty(t, report.Removed)
	assert.Equal(t, 1, report.CompactedMirrors)

	_, err = os.Stat(clone.Path)
	assert.NoError(t, err)
}
