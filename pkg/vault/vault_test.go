package vault

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwbla/repoman/pkg/errors"
)

func TestExtractRepoName(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{"https with .git", "https://github.com/user/repo.git", "repo"},
		{"https without .git", "https://github.com/user/repo", "repo"},
		{"https trailing slash", "https://github.com/user/repo/", "repo"},
		{"https nested groups", "https://gitlab.com/group/subgroup/repo.git", "repo"},
		{"ssh with .git", "git@github.com:user/repo.git", "repo"},
		{"ssh without .git", "git@github.com:user/repo", "repo"},
		{"ssh nested groups", "git@gitlab.com:group/subgroup/repo.git", "repo"},
		{"local path", "/path/to/local/repo", "repo"},
		{"local path trailing slash", "/path/to/local/repo/", "repo"},
		{"surrounding whitespace", "  https://github.com/user/repo.git  ", "repo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, err := ExtractRepoName(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, name)
		})
	}
}

func TestExtractRepoNameEmpty(t *testing.T) {
	_, err := ExtractRepoName("")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidInput(err))
}

func TestAddAndGet(t *testing.T) {
	v := New()
	require.NoError(t, v.Add("repo1", "url1"))
	require.NoError(t, v.Add("repo2", "url2"))

	entry := v.Get("repo1")
	require.NotNil(t, entry)
	assert.Equal(t, "url1", entry.URL)
	assert.False(t, entry.AddedDate.IsZero())

	assert.Nil(t, v.Get("nonexistent"))
}

func TestAddDuplicateFails(t *testing.T) {
	v := New()
	require.NoError(t, v.Add("repo", "url1"))

	err := v.Add("repo", "url2")
	require.Error(t, err)
	assert.True(t, errors.IsAlreadyExists(err))
}

func TestContainsAndNames(t *testing.T) {
	v := New()
	require.NoError(t, v.Add("repo1", "url1"))
	require.NoError(t, v.Add("repo2", "url2"))

	assert.True(t, v.Contains("repo1"))
	assert.False(t, v.Contains("other"))
	assert.ElementsMatch(t, []string{"repo1", "repo2"}, v.Names())
}

func TestRemove(t *testing.T) {
	v := New()
	require.NoError(t, v.Add("repo1", "url1"))
	require.NoError(t, v.Add("repo2", "url2"))

	removed := v.Remove("repo1")
	require.NotNil(t, removed)
	assert.Equal(t, "repo1", removed.Name)
	assert.False(t, v.Contains("repo1"))
	assert.True(t, v.Contains("repo2"))

	assert.Nil(t, v.Remove("nonexistent"))
}

func TestAliasResolution(t *testing.T) {
	v := New()
	require.NoError(t, v.Add("widget", "url"))
	require.NoError(t, v.AddAlias("w", "widget"))

	assert.Equal(t, "widget", v.Resolve("w"))
	assert.Equal(t, "widget", v.Resolve("widget"))
	assert.Equal(t, "unmapped", v.Resolve("unmapped"))

	assert.True(t, v.Contains("w"))
	entry := v.Get("w")
	require.NotNil(t, entry)
	assert.Equal(t, "widget", entry.Name)
}

func TestAddAliasUnknownNameFails(t *testing.T) {
	v := New()
	err := v.AddAlias("w", "widget")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestRemoveAlias(t *testing.T) {
	v := New()
	require.NoError(t, v.Add("widget", "url"))
	require.NoError(t, v.AddAlias("w", "widget"))

	require.NoError(t, v.RemoveAlias("w"))
	assert.Equal(t, "w", v.Resolve("w"))

	err := v.RemoveAlias("w")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestRemoveAliasesFor(t *testing.T) {
	v := New()
	require.NoError(t, v.Add("repo1", "url1"))
	require.NoError(t, v.Add("repo2", "url2"))
	require.NoError(t, v.AddAlias("r1", "repo1"))
	require.NoError(t, v.AddAlias("r1-short", "repo1"))
	require.NoError(t, v.AddAlias("r2", "repo2"))

	removed := v.RemoveAliasesFor("repo1")
	assert.ElementsMatch(t, []string{"r1", "r1-short"}, removed)
	assert.NotContains(t, v.Aliases, "r1")
	assert.NotContains(t, v.Aliases, "r1-short")
	assert.Contains(t, v.Aliases, "r2")

	assert.Empty(t, v.RemoveAliasesFor("repo2-no-aliases"))
}

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())

	// Missing file yields an empty vault.
	v, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, v.Entries)

	require.NoError(t, v.Add("repo1", "url1"))
	require.NoError(t, v.AddAlias("r1", "repo1"))
	require.NoError(t, store.Save(v))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.True(t, loaded.Contains("repo1"))
	assert.Equal(t, "repo1", loaded.Resolve("r1"))
}

func TestStoreUpdate(t *testing.T) {
	store := NewStore(t.TempDir())

	err := store.Update(context.Background(), func(v *Vault) error {
		return v.Add("repo1", "url1")
	})
	require.NoError(t, err)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.True(t, loaded.Contains("repo1"))
}

func TestStoreUpdateAbortsOnError(t *testing.T) {
	store := NewStore(t.TempDir())

	require.NoError(t, store.Update(context.Background(), func(v *Vault) error {
		return v.Add("repo1", "url1")
	}))

	err := store.Update(context.Background(), func(v *Vault) error {
		return v.Add("repo1", "other-url")
	})
	require.Error(t, err)
	assert.True(t, errors.IsAlreadyExists(err))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "url1", loaded.Get("repo1").URL)
}
