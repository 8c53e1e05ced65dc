package tags

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
	"github.com/jwbla/repoman/pkg/metadata"
	"github.com/jwbla/repoman/pkg/vault"
)

func TestLatestTag(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		tags []string
		want string
	}{
		{name: "empty", tags: nil, want: ""},
		{name: "single semver", tags: []string{"1.0.0"}, want: "1.0.0"},
		{name: "semver ordering", tags: []string{"1.2.0", "1.10.0", "1.9.9"}, want: "1.10.0"},
		{name: "v prefix accepted", tags: []string{"v1.0.0", "v2.1.3", "v2.0.0"}, want: "v2.1.3"},
		{name: "capital V prefix", tags: []string{"V3.0.0", "v2.0.0"}, want: "V3.0.0"},
		{name: "semver beats non-semver", tags: []string{"zzz-release", "0.0.1"}, want: "0.0.1"},
		{name: "lexicographic fallback", tags: []string{"alpha", "beta", "candidate"}, want: "candidate"},
		{name: "prerelease below release", tags: []string{"1.0.0-rc.1", "1.0.0"}, want: "1.0.0"},
		{name: "partial versions are not semver", tags: []string{"v1", "0.5.0"}, want: "0.5.0"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, LatestTag(tt.tags))
		})
	}
}

func TestTagNames(t *testing.T) {
	t.Parallel()
	refs := []string{
		"refs/heads/main",
		"refs/tags/v1.0.0",
		"refs/tags/v1.0.0^{}",
		"refs/tags/v2.0.0",
	}
	assert.Equal(t, []string{"v1.0.0", "v2.0.0"}, tagNames(refs))
}

func newFixture(t *testing.T) (*config.Config, *Tracker, *gogit.Repository) {
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
	_, err = worktree.Commit("initial", &gogit.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	require.NoError(t, vault.NewStore(cfg.VaultDir).Update(context.Background(), func(v *vault.Vault) error {
		return v.Add("widget", source)
	}))
	require.NoError(t, metadata.NewStore(cfg.VaultDir).Save("widget", metadata.New([]string{source})))
	return cfg, New(cfg), repo
}

func tagHead(t *testing.T, repo *gogit.Repository, name string) {
	t.Helper()
	head, err := repo.Head()
	require.NoError(t, err)
	_, err = repo.CreateTag(name, head.Hash(), nil)
	require.NoError(t, err)
}

func TestCheckForNewTag(t *testing.T) {
	cfg, tracker, repo := newFixture(t)
	ctx := context.Background()

	// No tags upstream: nothing to report.
	tag, changed, err := tracker.CheckForNewTag("widget")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, tag)

	tagHead(t, repo, "v1.0.0")
	tag, changed, err = tracker.CheckForNewTag("widget")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "v1.0.0", tag)

	require.NoError(t, tracker.UpdateLatestTag(ctx, "widget", tag))
	meta, err := metadata.NewStore(cfg.VaultDir).Load("widget")
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0", meta.LatestTag)

	// Same tag again: no change.
	tag, changed, err = tracker.CheckForNewTag("widget")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "v1.0.0", tag)

	tagHead(t, repo, "v1.1.0")
	tag, changed, err = tracker.CheckForNewTag("widget")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "v1.1.0", tag)
}

func TestCheckForNewTagUnknownRepo(t *testing.T) {
	_, tracker, _ := newFixture(t)
	_, _, err := tracker.CheckForNewTag("nope")
	assert.True(t, errors.IsNotFound(err))
}
