package syncer

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
	"github.com/jwbla/repoman/pkg/errors"
	"github.com/jwbla/repoman/pkg/lifecycle"
	"github.com/jwbla/repoman/pkg/metadata"
	"github.com/jwbla/repoman/pkg/vault"
)

var testSignature = &object.Signature{
	Name:  "test",
	Email: "test@example.com",
	When:  time.Now(),
}

func newFixture(t *testing.T) (*config.Config, *Syncer, string) {
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
	commitFile(t, repo, source, "README.md", "hello\n")

	require.NoError(t, vault.NewStore(cfg.VaultDir).Update(context.Background(), func(v *vault.Vault) error {
		return v.Add("widget", source)
	}))
	require.NoError(t, metadata.NewStore(cfg.VaultDir).Save("widget", metadata.New([]string{source})))
	return cfg, New(cfg), source
}

func commitFile(t *testing.T, repo *gogit.Repository, dir, file, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(content), 0600))
	worktree, err := repo.Worktree()
	require.NoError(t, err)
	_, err = worktree.Add(file)
	require.NoError(t, err)
	_, err = worktree.Commit("add "+file, &gogit.CommitOptions{Author: testSignature})
	require.NoError(t, err)
}

func commitInSource(t *testing.T, source, file, content string) {
	t.Helper()
	repo, err := gogit.PlainOpen(source)
	require.NoError(t, err)
	commitFile(t, repo, source, file, content)
}

func TestSyncPristine(t *testing.T) {
	cfg, syn, source := newFixture(t)
	ctx := context.Background()
	require.NoError(t, lifecycle.NewManager(cfg).InitPristine(ctx, "widget"))

	commitInSource(t, source, "new.txt", "x\n")
	require.NoError(t, syn.SyncPristine(ctx, "widget", metadata.SyncManual))

	meta, err := metadata.NewStore(cfg.VaultDir).Load("widget")
	require.NoError(t, err)
	require.NotNil(t, meta.LastSync)
	assert.Equal(t, metadata.SyncManual, meta.LastSync.Kind)
}

func TestSyncPristineUnknownRepo(t *testing.T) {
	_, syn, _ := newFixture(t)
	err := syn.SyncPristine(context.Background(), "nope", metadata.SyncManual)
	assert.True(t, errors.IsNotFound(err))
}

func TestSyncPristineWithoutMirror(t *testing.T) {
	_, syn, _ := newFixture(t)
	err := syn.SyncPristine(context.Background(), "widget", metadata.SyncManual)
	assert.True(t, errors.IsNotFound(err))
}

func TestUpdateRepoFastForward(t *testing.T) {
	cfg, syn, source := newFixture(t)
	ctx := context.Background()
	mgr := lifecycle.NewManager(cfg)
	require.NoError(t, mgr.InitPristine(ctx, "widget"))
	clone, err := mgr.Clone(ctx, "widget", "dev", "")
	require.NoError(t, err)

	commitInSource(t, source, "new.txt", "x\n")

	report, err := syn.UpdateRepo(ctx, "widget", metadata.SyncManual)
	require.NoError(t, err)
	require.Len(t, report.Clones, 1)
	assert.Equal(t, StateFastForwarded, report.Clones[0].State)
	assert.Equal(t, "master", report.Clones[0].Branch)

	data, err := os.ReadFile(filepath.Join(clone.Path, "new.txt"))
	require.NoError(t, err)
	assert.Equal(t, "x\n", string(data))
}

func TestUpdateRepoUpToDate(t *testing.T) {
	cfg, syn, _ := newFixture(t)
	ctx := context.Background()
	mgr := lifecycle.NewManager(cfg)
	require.NoError(t, mgr.InitPristine(ctx, "widget"))
	_, err := mgr.Clone(ctx, "widget", "dev", "")
	require.NoError(t, err)

	report, err := syn.UpdateRepo(ctx, "widget", metadata.SyncManual)
	require.NoError(t, err)
	require.Len(t, report.Clones, 1)
	assert.Equal(t, StateUpToDate, report.Clones[0].State)
}

func TestUpdateRepoDiverged(t *testing.T) {
	cfg, syn, source := newFixture(t)
	ctx := context.Background()
	mgr := lifecycle.NewManager(cfg)
	require.NoError(t, mgr.InitPristine(ctx, "widget"))
	clone, err := mgr.Clone(ctx, "widget", "dev", "")
	require.NoError(t, err)

	// Local work in the clone plus an upstream commit.
	cloneRepo, err := gogit.PlainOpen(clone.Path)
	require.NoError(t, err)
	commitFile(t, cloneRepo, clone.Path, "local.txt", "local\n")
	commitInSource(t, source, "upstream.txt", "upstream\n")

	report, err := syn.UpdateRepo(ctx, "widget", metadata.SyncManual)
	require.NoError(t, err)
	require.Len(t, report.Clones, 1)
	assert.Equal(t, StateDiverged, report.Clones[0].State)
	assert.Equal(t, "manual merge required", report.Clones[0].Reason)

	// The diverged clone keeps its local commit untouched.
	_, err = os.Stat(filepath.Join(clone.Path, "local.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(clone.Path, "upstream.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestUpdateRepoSkipsMissingDirectory(t *testing.T) {
	cfg, syn, _ := newFixture(t)
	ctx := context.Background()
	mgr := lifecycle.NewManager(cfg)
	require.NoError(t, mgr.InitPristine(ctx, "widget"))
	clone, err := mgr.Clone(ctx, "widget", "dev", "")
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(clone.Path))

	report, err := syn.UpdateRepo(ctx, "widget", metadata.SyncManual)
	require.NoError(t, err)
	require.Len(t, report.Clones, 1)
	assert.Equal(t, StateSkipped, report.Clones[0].State)
	assert.Equal(t, "directory missing", report.Clones[0].Reason)
}

func TestUpdateRepoSkipsDetachedHead(t *testing.T) {
	cfg, syn, _ := newFixture(t)
	ctx := context.Background()
	mgr := lifecycle.NewManager(cfg)
	require.NoError(t, mgr.InitPristine(ctx, "widget"))
	clone, err := mgr.Clone(ctx, "widget", "dev", "")
	require.NoError(t, err)

	cloneRepo, err := gogit.PlainOpen(clone.Path)
	require.NoError(t, err)
	head, err := cloneRepo.Head()
	require.NoError(t, err)
	worktree, err := cloneRepo.Worktree()
	require.NoError(t, err)
	require.NoError(t, worktree.Checkout(&gogit.CheckoutOptions{Hash: head.Hash()}))

	report, err := syn.UpdateRepo(ctx, "widget", metadata.SyncManual)
	require.NoError(t, err)
	require.Len(t, report.Clones, 1)
	assert.Equal(t, StateSkipped, report.Clones[0].State)
	assert.Equal(t, "detached head", report.Clones[0].Reason)
}
