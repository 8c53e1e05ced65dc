// Package metadata holds the durable per-repository state: remote URLs,
// clone inventory, sync bookkeeping, auth hints and tag tracking.
package metadata

import (
	"time"

	"github.com/jwbla/repoman/pkg/errors"
)

// Sync kinds recorded in LastSync.
const (
	SyncManual = "manual"
	SyncAuto   = "auto"
)

// CloneEntry records one working copy. Name is the suffix portion of the
// clone directory (<canonical>-<suffix>).
type CloneEntry struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Created time.Time `json:"created"`
}

// SyncInfo records the most recent sync and whether it was manual or
// triggered by the agent.
type SyncInfo struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
}

// AuthConfig carries optional per-repository authentication hints.
type AuthConfig struct {
	SSHKeyPath  string `json:"ssh_key_path,omitempty"`
	TokenEnvVar string `json:"token_env_var,omitempty"`
}

// Metadata is the per-repository record. GitURLs is ordered and non-empty;
// element 0 is the default remote.
type Metadata struct {
	GitURLs         []string     `json:"git_urls"`
	CreatedOn       time.Time    `json:"created_on"`
	LastUpdated     time.Time    `json:"last_updated"`
	DefaultBranch   string       `json:"default_branch,omitempty"`
	TrackedBranches []string     `json:"tracked_branches,omitempty"`
	Clones          []CloneEntry `json:"clones"`
	SyncInterval    *uint64      `json:"sync_interval,omitempty"`
	LastSync        *SyncInfo    `json:"last_sync,omitempty"`
	AuthConfig      *AuthConfig  `json:"auth_config,omitempty"`
	LatestTag       string       `json:"latest_tag,omitempty"`
	PristineCreated *time.Time   `json:"pristine_created,omitempty"`
}

// New creates metadata for a repository with the given remote URLs
// (urls[0] is the default).
func New(urls []string) *Metadata {
	now := time.Now().UTC()
	return &Metadata{
		GitURLs:     urls,
		CreatedOn:   now,
		LastUpdated: now,
	}
}

// DefaultURL returns the primary remote URL. It fails when the URL list is
// empty.
func (m *Metadata) DefaultURL() (string, error) {
	if len(m.GitURLs) == 0 {
		return "", errors.NewInvalidInputError("repository has no git URLs", nil)
	}
	return m.GitURLs[0], nil
}

// Touch bumps the last-updated timestamp.
func (m *Metadata) Touch() {
	m.LastUpdated = time.Now().UTC()
}

// AddClone appends a clone entry and touches the record.
func (m *Metadata) AddClone(name, path string) {
	m.Clones = append(m.Clones, CloneEntry{
		Name:    name,
		Path:    path,
		Created: time.Now().UTC(),
	})
	m.Touch()
}

// GetClone returns the clone entry with the given suffix name, or nil.
func (m *Metadata) GetClone(name string) *CloneEntry {
	for i := range m.Clones {
		if m.Clones[i].Name == name {
			return &m.Clones[i]
		}
	}
	return nil
}

// RemoveClone deletes a clone entry by suffix name and returns it, or nil
// when absent. Touches the record only on an actual removal.
func (m *Metadata) RemoveClone(name string) *CloneEntry {
	for i := range m.Clones {
		if m.Clones[i].Name == name {
			removed := m.Clones[i]
			m.Clones = append(m.Clones[:i], m.Clones[i+1:]...)
			m.Touch()
			return &removed
		}
	}
	return nil
}

// MarkSynced records a completed sync of the given kind.
func (m *Metadata) MarkSynced(kind string) {
	m.LastSync = &SyncInfo{
		Timestamp: time.Now().UTC(),
		Kind:      kind,
	}
	m.Touch()
}

// MarkPristineCreated flags that a mirror was created. The flag is
// best-effort; filesystem existence stays authoritative.
func (m *Metadata) MarkPristineCreated() {
	now := time.Now().UTC()
	m.PristineCreated = &now
	m.Touch()
}

// ClearPristineCreated drops the mirror flag after pristine destruction.
func (m *Metadata) ClearPristineCreated() {
	m.PristineCreated = nil
	m.Touch()
}

// EffectiveSyncInterval returns the per-repository interval, or the given
// process-wide default when none is set.
func (m *Metadata) EffectiveSyncInterval(defaultSeconds uint64) uint64 {
	if m.SyncInterval != nil && *m.SyncInterval > 0 {
		return *m.SyncInterval
	}
	return defaultSeconds
}
