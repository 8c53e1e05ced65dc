package vault

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/jwbla/repoman/pkg/errors"
)

// lockTimeout is the maximum time to wait for the vault file lock.
const lockTimeout = 1 * time.Second

// Store persists the vault as vault.json inside the vault directory. Every
// call re-reads the file so that independent processes (CLI and agent)
// always observe the latest state.
type Store struct {
	vaultDir string
}

// NewStore creates a store rooted at the given vault directory.
func NewStore(vaultDir string) *Store {
	return &Store{vaultDir: vaultDir}
}

func (s *Store) path() string {
	return filepath.Join(s.vaultDir, "vault.json")
}

// Load reads the vault from disk, returning an empty vault when the file
// does not exist yet.
func (s *Store) Load() (*Vault, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, errors.NewStorageError("failed to load vault", err)
	}

	var v Vault
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, errors.NewStorageError("failed to parse vault", err)
	}
	if v.Aliases == nil {
		v.Aliases = make(map[string]string)
	}
	return &v, nil
}

// Save writes the vault to disk, creating the vault directory if needed.
func (s *Store) Save(v *Vault) error {
	if err := os.MkdirAll(s.vaultDir, 0750); err != nil {
		return errors.NewStorageError("failed to create vault directory", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.NewStorageError("failed to serialize vault", err)
	}
	if err := os.WriteFile(s.path(), data, 0600); err != nil {
		return errors.NewStorageError("failed to save vault", err)
	}
	return nil
}

// Update runs a load-mutate-save cycle under an advisory file lock so that
// concurrent writers (a manual command and the agent) cannot lose updates.
// The update function may return an error to abort without saving.
func (s *Store) Update(ctx context.Context, updateFn func(*Vault) error) error {
	if err := os.MkdirAll(s.vaultDir, 0750); err != nil {
		return errors.NewStorageError("failed to create vault directory", err)
	}

	fileLock := flock.New(s.path() + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil {
		return errors.NewStorageError("failed to acquire vault lock", err)
	}
	if !locked {
		return errors.NewStorageError("timed out waiting for vault lock", nil)
	}
	defer fileLock.Unlock()

	v, err := s.Load()
	if err != nil {
		return err
	}
	if err := updateFn(v); err != nil {
		return err
	}
	return s.Save(v)
}
