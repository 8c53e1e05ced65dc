package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/jwbla/repoman/pkg/errors"
)

// lockTimeout is the maximum time to wait for a metadata file lock.
const lockTimeout = 1 * time.Second

// Store persists one metadata.json per repository under the vault
// directory. Like the vault store, every call re-reads the file from disk.
type Store struct {
	vaultDir string
}

// NewStore creates a store rooted at the given vault directory.
func NewStore(vaultDir string) *Store {
	return &Store{vaultDir: vaultDir}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.vaultDir, name, "metadata.json")
}

// Load reads the metadata record for a repository. It fails with a
// not-found error when the record is absent.
func (s *Store) Load(name string) (*Metadata, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError(fmt.Sprintf("metadata for '%s' not found", name), err)
		}
		return nil, errors.NewStorageError(fmt.Sprintf("failed to load metadata for '%s'", name), err)
	}

	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.NewStorageError(fmt.Sprintf("failed to parse metadata for '%s'", name), err)
	}
	return &m, nil
}

// Save writes the metadata record, creating the per-repository directory if
// needed.
func (s *Store) Save(name string, m *Metadata) error {
	dir := filepath.Join(s.vaultDir, name)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to create metadata directory for '%s'", name), err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to serialize metadata for '%s'", name), err)
	}
	if err := os.WriteFile(s.path(name), data, 0600); err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to save metadata for '%s'", name), err)
	}
	return nil
}

// Remove deletes the per-repository metadata directory.
func (s *Store) Remove(name string) error {
	dir := filepath.Join(s.vaultDir, name)
	if err := os.RemoveAll(dir); err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to remove metadata for '%s'", name), err)
	}
	return nil
}

// Update runs a load-mutate-save cycle for one repository under an advisory
// file lock, so a manual command and the agent cannot clobber each other's
// writes to the same record.
func (s *Store) Update(ctx context.Context, name string, updateFn func(*Metadata) error) error {
	dir := filepath.Join(s.vaultDir, name)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to create metadata directory for '%s'", name), err)
	}

	fileLock := flock.New(s.path(name) + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to acquire metadata lock for '%s'", name), err)
	}
	if !locked {
		return errors.NewStorageError(fmt.Sprintf("timed out waiting for metadata lock for '%s'", name), nil)
	}
	defer fileLock.Unlock()

	m, err := s.Load(name)
	if err != nil {
		return err
	}
	if err := updateFn(m); err != nil {
		return err
	}
	return s.Save(name, m)
}
