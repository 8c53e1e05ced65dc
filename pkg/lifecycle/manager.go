// Package lifecycle creates and destroys pristine mirrors and the shared
// working copies derived from them.
package lifecycle

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/jwbla/repoman/pkg/auth"
	"github.com/jwbla/repoman/pkg/config"
	"github.com/jwbla/repoman/pkg/errors"
	"github.com/jwbla/repoman/pkg/git"
	"github.com/jwbla/repoman/pkg/logger"
	"github.com/jwbla/repoman/pkg/metadata"
	"github.com/jwbla/repoman/pkg/vault"
)

const cloneSuffixLength = 6

// Manager orchestrates pristine and clone lifecycle operations. Every
// operation reloads registry and metadata state fresh, so independent
// Manager calls do not share mutable state.
type Manager struct {
	cfg   *config.Config
	vault *vault.Store
	meta  *metadata.Store
	git   git.Client
}

// NewManager creates a Manager backed by the default go-git client.
func NewManager(cfg *config.Config) *Manager {
	return NewManagerWithClient(cfg, git.NewDefaultClient())
}

// NewManagerWithClient creates a Manager with an explicit backend client.
func NewManagerWithClient(cfg *config.Config, client git.Client) *Manager {
	return &Manager{
		cfg:   cfg,
		vault: vault.NewStore(cfg.VaultDir),
		meta:  metadata.NewStore(cfg.VaultDir),
		git:   client,
	}
}

// resolve loads the registry and resolves a name or alias to its canonical
// entry.
func (m *Manager) resolve(name string) (*vault.Entry, error) {
	v, err := m.vault.Load()
	if err != nil {
		return nil, err
	}
	entry := v.Get(name)
	if entry == nil {
		return nil, errors.NewNotFoundError(fmt.Sprintf("repository '%s' not found in vault", name), nil)
	}
	return entry, nil
}

// InitPristine creates the bare mirror for a registered repository.
func (m *Manager) InitPristine(ctx context.Context, name string) error {
	entry, err := m.resolve(name)
	if err != nil {
		return err
	}

	pristinePath := m.cfg.PristinePath(entry.Name)
	if _, err := os.Stat(pristinePath); err == nil {
		return errors.NewAlreadyExistsError(fmt.Sprintf("pristine for '%s' already exists", entry.Name), nil)
	}

	meta, err := m.meta.Load(entry.Name)
	if err != nil {
		return err
	}
	url, err := meta.DefaultURL()
	if err != nil {
		return err
	}

	attempt := auth.NewNegotiator(entry.Name, meta.AuthConfig).Begin()
	cred, err := attempt.Credentials(url)
	if err != nil {
		return auth.WrapGitError(err, entry.Name)
	}

	logger.Infof("Initializing pristine for '%s' from %s", entry.Name, url)
	if err := m.git.CloneMirror(url, pristinePath, cred, git.NewProgressWriter("init "+entry.Name)); err != nil {
		// Do not leave a half-cloned mirror behind.
		_ = os.RemoveAll(pristinePath)
		return auth.WrapGitError(err, entry.Name)
	}

	branch, err := m.git.DefaultBranch(pristinePath)
	if err != nil {
		logger.Warnf("Could not determine default branch for '%s': %v", entry.Name, err)
		branch = ""
	}

	return m.meta.Update(ctx, entry.Name, func(meta *metadata.Metadata) error {
		meta.MarkPristineCreated()
		if branch != "" {
			meta.DefaultBranch = branch
		}
		return nil
	})
}

// CloneResult describes a newly created working copy.
type CloneResult struct {
	DirName string
	Path    string
	Branch  string
}

// Clone creates a working copy from a pristine mirror. An empty cloneName
// gets a random suffix; an empty branch resolves to the mirror's default.
func (m *Manager) Clone(ctx context.Context, name, cloneName, branch string) (*CloneResult, error) {
	entry, err := m.resolve(name)
	if err != nil {
		return nil, err
	}

	pristinePath := m.cfg.PristinePath(entry.Name)
	if _, err := os.Stat(pristinePath); err != nil {
		return nil, errors.NewNotFoundError(
			fmt.Sprintf("pristine for '%s' does not exist, run 'repoman init %s' first", entry.Name, entry.Name), nil)
	}

	if branch == "" {
		branch, err = m.git.DefaultBranch(pristinePath)
		if err != nil {
			return nil, errors.NewBackendError("failed to resolve default branch", err)
		}
	} else {
		has, err := m.git.HasBranch(pristinePath, branch)
		if err != nil {
			return nil, errors.NewBackendError("failed to inspect mirror branches", err)
		}
		if !has {
			return nil, errors.NewInvalidInputError(
				fmt.Sprintf("branch '%s' does not exist in pristine '%s'", branch, entry.Name), nil)
		}
	}

	suffix := cloneName
	if suffix == "" {
		suffix, err = randomSuffix(cloneSuffixLength)
		if err != nil {
			return nil, err
		}
	}
	dirName := entry.Name + "-" + suffix
	clonePath := m.cfg.ClonePath(dirName)
	if _, err := os.Stat(clonePath); err == nil {
		return nil, errors.NewAlreadyExistsError(fmt.Sprintf("clone directory '%s' already exists", dirName), nil)
	}

	logger.Infof("Creating clone '%s' on branch '%s'", dirName, branch)
	if err := m.git.CreateSharedClone(pristinePath, clonePath, branch); err != nil {
		_ = os.RemoveAll(clonePath)
		return nil, errors.NewBackendError(fmt.Sprintf("failed to create clone '%s'", dirName), err)
	}

	err = m.meta.Update(ctx, entry.Name, func(meta *metadata.Metadata) error {
		meta.AddClone(suffix, clonePath)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &CloneResult{DirName: dirName, Path: clonePath, Branch: branch}, nil
}

// DestroyPristine removes a repository's mirror. The registry entry and
// any clones are left untouched.
func (m *Manager) DestroyPristine(ctx context.Context, name string) error {
	entry, err := m.resolve(name)
	if err != nil {
		return err
	}

	pristinePath := m.cfg.PristinePath(entry.Name)
	if _, err := os.Stat(pristinePath); err != nil {
		return errors.NewNotFoundError(fmt.Sprintf("pristine for '%s' does not exist", entry.Name), nil)
	}
	if err := os.RemoveAll(pristinePath); err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to remove pristine '%s'", entry.Name), err)
	}
	logger.Infof("Destroyed pristine for '%s'", entry.Name)

	return m.meta.Update(ctx, entry.Name, func(meta *metadata.Metadata) error {
		meta.ClearPristineCreated()
		return nil
	})
}

// DestroyClone resolves a clone by suffix or full directory name and
// removes it along with its metadata record.
func (m *Manager) DestroyClone(ctx context.Context, nameOrDir string) error {
	if done, err := m.destroyCloneByDir(ctx, nameOrDir); done || err != nil {
		return err
	}
	if done, err := m.destroyCloneBySuffix(ctx, nameOrDir); done || err != nil {
		return err
	}
	return errors.NewNotFoundError(fmt.Sprintf("no clone matches '%s'", nameOrDir), nil)
}

// destroyCloneByDir interprets the argument as a full clone directory
// name. Resolution goes through metadata first; an on-disk directory with
// no record is still removed.
func (m *Manager) destroyCloneByDir(ctx context.Context, dirName string) (bool, error) {
	owner, suffix, err := m.findCloneByDir(dirName)
	if err != nil {
		return false, err
	}
	if owner != "" {
		return true, m.removeClone(ctx, owner, suffix)
	}

	// Unrecorded directory under the clones root.
	path := m.cfg.ClonePath(dirName)
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		logger.Warnf("Clone directory '%s' has no metadata record, removing directory only", dirName)
		if err := os.RemoveAll(path); err != nil {
			return true, errors.NewStorageError(fmt.Sprintf("failed to remove clone '%s'", dirName), err)
		}
		return true, nil
	}
	return false, nil
}

// findCloneByDir searches every repository's metadata for a clone whose
// directory base name matches. When no record matches it falls back to
// splitting the directory name on its last hyphen, which mis-resolves
// canonical names that themselves contain hyphens (known limitation).
func (m *Manager) findCloneByDir(dirName string) (owner, suffix string, err error) {
	v, err := m.vault.Load()
	if err != nil {
		return "", "", err
	}

	for _, name := range v.Names() {
		meta, err := m.meta.Load(name)
		if err != nil {
			continue
		}
		for _, clone := range meta.Clones {
			if filepath.Base(clone.Path) == dirName {
				return name, clone.Name, nil
			}
		}
	}

	idx := strings.LastIndex(dirName, "-")
	if idx <= 0 || idx == len(dirName)-1 {
		return "", "", nil
	}
	base, tail := dirName[:idx], dirName[idx+1:]
	if !v.Contains(base) {
		return "", "", nil
	}
	meta, err := m.meta.Load(base)
	if err != nil {
		return "", "", nil //nolint:nilerr // fall through to the on-disk check
	}
	if meta.GetClone(tail) != nil {
		return base, tail, nil
	}
	return "", "", nil
}

// destroyCloneBySuffix interprets the argument as a clone suffix and
// searches every repository's metadata for it.
func (m *Manager) destroyCloneBySuffix(ctx context.Context, suffix string) (bool, error) {
	v, err := m.vault.Load()
	if err != nil {
		return false, err
	}
	for _, name := range v.Names() {
		meta, err := m.meta.Load(name)
		if err != nil {
			continue
		}
		if meta.GetClone(suffix) != nil {
			return true, m.removeClone(ctx, name, suffix)
		}
	}
	return false, nil
}

// removeClone deletes the clone directory and its metadata record.
func (m *Manager) removeClone(ctx context.Context, owner, suffix string) error {
	meta, err := m.meta.Load(owner)
	if err != nil {
		return err
	}
	clone := meta.GetClone(suffix)
	if clone == nil {
		return errors.NewNotFoundError(fmt.Sprintf("clone '%s' not recorded for '%s'", suffix, owner), nil)
	}

	if err := os.RemoveAll(clone.Path); err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to remove clone '%s'", suffix), err)
	}
	logger.Infof("Destroyed clone '%s' of '%s'", suffix, owner)

	return m.meta.Update(ctx, owner, func(meta *metadata.Metadata) error {
		meta.RemoveClone(suffix)
		return nil
	})
}

// DestroyTarget dispatches on what the argument names: a pristine, a full
// clone directory, or a clone suffix, tried in that order.
func (m *Manager) DestroyTarget(ctx context.Context, target string) error {
	if entry, err := m.resolve(target); err == nil {
		if _, statErr := os.Stat(m.cfg.PristinePath(entry.Name)); statErr == nil {
			return m.DestroyPristine(ctx, target)
		}
	}
	if done, err := m.destroyCloneByDir(ctx, target); done || err != nil {
		return err
	}
	if done, err := m.destroyCloneBySuffix(ctx, target); done || err != nil {
		return err
	}
	return errors.NewNotFoundError(fmt.Sprintf("'%s' matches no pristine, clone directory or clone suffix", target), nil)
}

// DestroyAllClones removes every recorded clone of a repository,
// best-effort. It returns the suffixes that were actually removed.
func (m *Manager) DestroyAllClones(ctx context.Context, name string) ([]string, error) {
	entry, err := m.resolve(name)
	if err != nil {
		return nil, err
	}
	meta, err := m.meta.Load(entry.Name)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, clone := range meta.Clones {
		if err := os.RemoveAll(clone.Path); err != nil {
			logger.Warnf("Failed to remove clone '%s': %v, skipping", clone.Name, err)
			continue
		}
		removed = append(removed, clone.Name)
	}

	if len(removed) > 0 {
		err = m.meta.Update(ctx, entry.Name, func(meta *metadata.Metadata) error {
			for _, suffix := range removed {
				meta.RemoveClone(suffix)
			}
			return nil
		})
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// DestroyAllPristines removes every existing mirror, best-effort. It
// returns the repository names whose mirrors were removed.
func (m *Manager) DestroyAllPristines(ctx context.Context) ([]string, error) {
	v, err := m.vault.Load()
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, name := range v.Names() {
		pristinePath := m.cfg.PristinePath(name)
		if _, err := os.Stat(pristinePath); err != nil {
			continue
		}
		if err := os.RemoveAll(pristinePath); err != nil {
			logger.Warnf("Failed to remove pristine '%s': %v, skipping", name, err)
			continue
		}
		removed = append(removed, name)

		err = m.meta.Update(ctx, name, func(meta *metadata.Metadata) error {
			meta.ClearPristineCreated()
			return nil
		})
		if err != nil {
			logger.Warnf("Failed to update metadata for '%s': %v", name, err)
		}
	}
	return removed, nil
}

// RemoveRepository removes a repository entirely: pristine, clones,
// metadata, registry entry and any aliases pointing at it.
func (m *Manager) RemoveRepository(ctx context.Context, name string) (*vault.Entry, error) {
	entry, err := m.resolve(name)
	if err != nil {
		return nil, err
	}

	if meta, err := m.meta.Load(entry.Name); err == nil {
		for _, clone := range meta.Clones {
			if err := os.RemoveAll(clone.Path); err != nil {
				logger.Warnf("Failed to remove clone '%s': %v", clone.Name, err)
			}
		}
	}
	if err := os.RemoveAll(m.cfg.PristinePath(entry.Name)); err != nil {
		logger.Warnf("Failed to remove pristine '%s': %v", entry.Name, err)
	}
	if err := m.meta.Remove(entry.Name); err != nil {
		logger.Warnf("Failed to remove metadata for '%s': %v", entry.Name, err)
	}

	var removed *vault.Entry
	err = m.vault.Update(ctx, func(v *vault.Vault) error {
		aliases := v.RemoveAliasesFor(entry.Name)
		for _, alias := range aliases {
			logger.Debugf("Removed alias '%s'", alias)
		}
		removed = v.Remove(entry.Name)
		if removed == nil {
			return errors.NewNotFoundError(fmt.Sprintf("repository '%s' not found in vault", entry.Name), nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("Removed repository '%s'", entry.Name)
	return removed, nil
}

// UninitializedRepos lists registered repositories that have no mirror on
// disk.
func (m *Manager) UninitializedRepos() ([]string, error) {
	return m.reposByPristine(false)
}

// SyncableRepos lists registered repositories whose mirror exists.
func (m *Manager) SyncableRepos() ([]string, error) {
	return m.reposByPristine(true)
}

func (m *Manager) reposByPristine(wantExisting bool) ([]string, error) {
	v, err := m.vault.Load()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, name := range v.Names() {
		_, err := os.Stat(m.cfg.PristinePath(name))
		exists := err == nil
		if exists == wantExisting {
			names = append(names, name)
		}
	}
	return names, nil
}

const suffixCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

// randomSuffix generates a lowercase-alphanumeric string of length n.
func randomSuffix(n int) (string, error) {
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(suffixCharset))))
		if err != nil {
			return "", fmt.Errorf("failed to generate clone suffix: %w", err)
		}
		out[i] = suffixCharset[idx.Int64()]
	}
	return string(out), nil
}
