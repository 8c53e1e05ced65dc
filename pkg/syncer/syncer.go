// Package syncer reconciles pristine mirrors with their remotes and
// fast-forwards the clones derived from them.
package syncer

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/jwbla/repoman/pkg/auth"
	"github.com/jwbla/repoman/pkg/config"
	"github.com/jwbla/repoman/pkg/errors"
	"github.com/jwbla/repoman/pkg/git"
	"github.com/jwbla/repoman/pkg/logger"
	"github.com/jwbla/repoman/pkg/metadata"
	"github.com/jwbla/repoman/pkg/vault"
)

// CloneState summarizes what the update pass did to a single clone.
type CloneState string

// Per-clone update outcomes.
const (
	StateUpToDate      CloneState = "up-to-date"
	StateFastForwarded CloneState = "fast-forwarded"
	StateDiverged      CloneState = "diverged"
	StateSkipped       CloneState = "skipped"
)

// CloneUpdate reports the outcome for one clone.
type CloneUpdate struct {
	Suffix string
	Branch string
	State  CloneState
	Reason string
}

// UpdateReport aggregates the update of one repository.
type UpdateReport struct {
	Repo   string
	Clones []CloneUpdate
}

// Syncer fetches mirrors and reconciles clones against them.
type Syncer struct {
	cfg   *config.Config
	vault *vault.Store
	meta  *metadata.Store
	git   git.Client
}

// New creates a Syncer backed by the default go-git client.
func New(cfg *config.Config) *Syncer {
	return NewWithClient(cfg, git.NewDefaultClient())
}

// NewWithClient creates a Syncer with an explicit backend client.
func NewWithClient(cfg *config.Config, client git.Client) *Syncer {
	return &Syncer{
		cfg:   cfg,
		vault: vault.NewStore(cfg.VaultDir),
		meta:  metadata.NewStore(cfg.VaultDir),
		git:   client,
	}
}

// SyncPristine fetches all branches and tags of a repository's mirror and
// records the sync. kind distinguishes a manual invocation from the
// agent's autonomous one.
func (s *Syncer) SyncPristine(ctx context.Context, name, kind string) error {
	v, err := s.vault.Load()
	if err != nil {
		return err
	}
	entry := v.Get(name)
	if entry == nil {
		return errors.NewNotFoundError(fmt.Sprintf("repository '%s' not found in vault", name), nil)
	}

	pristinePath := s.cfg.PristinePath(entry.Name)
	if _, err := os.Stat(pristinePath); err != nil {
		return errors.NewNotFoundError(
			fmt.Sprintf("pristine for '%s' does not exist, run 'repoman init %s' first", entry.Name, entry.Name), nil)
	}

	meta, err := s.meta.Load(entry.Name)
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

	logger.Infof("Syncing pristine for '%s'", entry.Name)
	if err := s.git.FetchMirror(pristinePath, url, cred, git.NewProgressWriter("sync "+entry.Name)); err != nil {
		return auth.WrapGitError(err, entry.Name)
	}

	return s.meta.Update(ctx, entry.Name, func(meta *metadata.Metadata) error {
		meta.MarkSynced(kind)
		return nil
	})
}

// UpdateRepo syncs the mirror, then walks every recorded clone and
// fast-forwards the ones that allow it. Clones that cannot be processed
// are skipped with a reason, never fatal to the rest.
func (s *Syncer) UpdateRepo(ctx context.Context, name, kind string) (*UpdateReport, error) {
	if err := s.SyncPristine(ctx, name, kind); err != nil {
		return nil, err
	}

	canonical := name
	if v, err := s.vault.Load(); err == nil {
		canonical = v.Resolve(name)
	}

	meta, err := s.meta.Load(canonical)
	if err != nil {
		return nil, err
	}

	report := &UpdateReport{Repo: canonical}
	for _, clone := range meta.Clones {
		report.Clones = append(report.Clones, s.updateClone(clone))
	}
	return report, nil
}

// updateClone reconciles a single working copy against its mirror.
func (s *Syncer) updateClone(clone metadata.CloneEntry) CloneUpdate {
	result := CloneUpdate{Suffix: clone.Name}

	if _, err := os.Stat(clone.Path); err != nil {
		result.State = StateSkipped
		result.Reason = "directory missing"
		return result
	}

	if err := s.git.FetchCloneOrigin(clone.Path); err != nil {
		logger.Warnf("Skipping clone '%s': fetch from mirror failed: %v", clone.Name, err)
		result.State = StateSkipped
		result.Reason = "fetch from mirror failed"
		return result
	}

	branch, err := s.git.CurrentBranch(clone.Path)
	if err != nil {
		logger.Warnf("Skipping clone '%s': cannot open repository: %v", clone.Name, err)
		result.State = StateSkipped
		result.Reason = "not an openable repository"
		return result
	}
	if branch == "" {
		result.State = StateSkipped
		result.Reason = "detached head"
		return result
	}
	result.Branch = branch

	status, err := s.git.Analyze(clone.Path, branch)
	if err != nil {
		if stderrors.Is(err, git.ErrNoTrackingRef) {
			result.State = StateSkipped
			result.Reason = fmt.Sprintf("no tracking ref for branch '%s'", branch)
			return result
		}
		logger.Warnf("Skipping clone '%s': merge analysis failed: %v", clone.Name, err)
		result.State = StateSkipped
		result.Reason = "merge analysis failed"
		return result
	}

	switch status {
	case git.MergeUpToDate:
		result.State = StateUpToDate
	case git.MergeFastForward, git.MergeUnborn:
		if err := s.git.FastForward(clone.Path, branch); err != nil {
			logger.Warnf("Skipping clone '%s': fast-forward failed: %v", clone.Name, err)
			result.State = StateSkipped
			result.Reason = "fast-forward failed"
			return result
		}
		result.State = StateFastForwarded
	case git.MergeDiverged:
		result.State = StateDiverged
		result.Reason = "manual merge required"
	}
	return result
}
