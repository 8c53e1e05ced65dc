// Package git wraps the go-git backend behind the narrow capability surface
// repoman needs: mirror clones, fetches, remote ref listing, merge analysis,
// checkouts and object repacking. Nothing outside this package touches
// go-git directly.
package git

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/jwbla/repoman/pkg/logger"
)

// MergeStatus classifies the relation between a clone's branch tip and its
// remote-tracking tip.
type MergeStatus int

// Merge analysis outcomes.
const (
	MergeUpToDate MergeStatus = iota
	MergeFastForward
	MergeDiverged
	MergeUnborn
)

func (s MergeStatus) String() string {
	switch s {
	case MergeUpToDate:
		return "up-to-date"
	case MergeFastForward:
		return "fast-forward"
	case MergeDiverged:
		return "diverged"
	case MergeUnborn:
		return "unborn"
	default:
		return "unknown"
	}
}

// Client is the backend capability interface consumed by the lifecycle,
// sync, tag and GC engines.
type Client interface {
	// CloneMirror creates a bare mirror of url at path.
	CloneMirror(url, path string, auth transport.AuthMethod, progress io.Writer) error
	// FetchMirror updates an existing mirror: all branches and tags from
	// url, creating the origin remote when absent.
	FetchMirror(path, url string, auth transport.AuthMethod, progress io.Writer) error
	// ListRemoteRefs lists the fully qualified ref names advertised by a
	// remote, without creating a local repository.
	ListRemoteRefs(url string, auth transport.AuthMethod) ([]string, error)
	// DefaultBranch returns the short branch name a mirror's HEAD points at.
	DefaultBranch(path string) (string, error)
	// HasBranch reports whether a mirror has the named local branch.
	HasBranch(path, branch string) (bool, error)
	// CreateSharedClone scaffolds a working copy at clonePath that shares
	// the mirror's object store via an alternates back-reference, with the
	// mirror registered as origin and branch checked out (detached head
	// when no tracking ref matches).
	CreateSharedClone(pristinePath, clonePath, branch string) error
	// FetchCloneOrigin fetches the clone's origin branches into
	// remote-tracking refs. The origin is the local mirror, so no
	// authentication is involved.
	FetchCloneOrigin(clonePath string) error
	// CurrentBranch returns the clone's checked-out branch, or "" when the
	// head is detached.
	CurrentBranch(clonePath string) (string, error)
	// Analyze compares branch against its origin tracking ref.
	Analyze(clonePath, branch string) (MergeStatus, error)
	// FastForward moves branch to its origin tracking tip and force-updates
	// the working tree.
	FastForward(clonePath, branch string) error
	// AheadBehind counts commits unique to branch and to its origin
	// tracking ref.
	AheadBehind(clonePath, branch string) (int, int, error)
	// HeadCommitTime returns the committer timestamp of the clone's head
	// commit.
	HeadCommitTime(clonePath string) (time.Time, error)
	// DirtyFiles counts modified/untracked entries in the working tree.
	DirtyFiles(clonePath string) (int, error)
	// Branches lists the local branch names of a repository.
	Branches(path string) ([]string, error)
	// Repack compacts a mirror's object storage.
	Repack(path string) error
}

// DefaultClient implements Client using go-git.
type DefaultClient struct{}

// NewDefaultClient creates a new DefaultClient.
func NewDefaultClient() *DefaultClient {
	return &DefaultClient{}
}

// ErrNoTrackingRef is returned when a branch has no origin tracking ref to
// compare against.
var ErrNoTrackingRef = stderrors.New("no matching remote-tracking ref")

var (
	headsRefSpec    = gitconfig.RefSpec("+refs/heads/*:refs/heads/*")
	tagsRefSpec     = gitconfig.RefSpec("+refs/tags/*:refs/tags/*")
	trackingRefSpec = gitconfig.RefSpec("+refs/heads/*:refs/remotes/origin/*")

	errUnbornLocalTip = stderrors.New("local branch has no commit")
	errNonSymbolicRef = stderrors.New("unexpected non-symbolic HEAD")
)

// CloneMirror creates a bare mirror of url at path.
func (*DefaultClient) CloneMirror(url, path string, auth transport.AuthMethod, progress io.Writer) error {
	_, err := gogit.PlainClone(path, true, &gogit.CloneOptions{
		URL:      url,
		Mirror:   true,
		Auth:     auth,
		Progress: progress,
	})
	return err
}

// FetchMirror updates a mirror in place: all branches and all tags, forced
// so rewritten upstream refs do not wedge the mirror.
func (*DefaultClient) FetchMirror(path, url string, auth transport.AuthMethod, progress io.Writer) error {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return fmt.Errorf("failed to open mirror: %w", err)
	}

	if _, err := repo.Remote(gogit.DefaultRemoteName); err != nil {
		if !stderrors.Is(err, gogit.ErrRemoteNotFound) {
			return err
		}
		logger.Debugf("git: origin remote missing in %s, creating it", path)
		if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{
			Name: gogit.DefaultRemoteName,
			URLs: []string{url},
		}); err != nil {
			return fmt.Errorf("failed to create origin remote: %w", err)
		}
	}

	err = repo.Fetch(&gogit.FetchOptions{
		RemoteName: gogit.DefaultRemoteName,
		RefSpecs:   []gitconfig.RefSpec{headsRefSpec, tagsRefSpec},
		Auth:       auth,
		Progress:   progress,
		Force:      true,
	})
	if stderrors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return nil
	}
	return err
}

// ListRemoteRefs lists refs advertised by url using a transient in-memory
// remote.
func (*DefaultClient) ListRemoteRefs(url string, auth transport.AuthMethod) ([]string, error) {
	remote := gogit.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: gogit.DefaultRemoteName,
		URLs: []string{url},
	})

	refs, err := remote.List(&gogit.ListOptions{Auth: auth})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, ref.Name().String())
	}
	return names, nil
}

// DefaultBranch resolves the symbolic HEAD of a mirror to a short branch
// name.
func (*DefaultClient) DefaultBranch(path string) (string, error) {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return "", err
	}

	head, err := repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", err
	}
	if head.Type() != plumbing.SymbolicReference {
		return "", errNonSymbolicRef
	}
	return head.Target().Short(), nil
}

// HasBranch reports whether path has the named local branch.
func (*DefaultClient) HasBranch(path, branch string) (bool, error) {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return false, err
	}
	_, err = repo.Reference(plumbing.NewBranchReferenceName(branch), false)
	if stderrors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateSharedClone scaffolds a working copy sharing the mirror's objects:
// init, alternates back-reference, origin remote, tracking refs, then a
// local branch checkout (or a detached checkout of the mirror head when no
// tracking ref matches the requested branch).
func (c *DefaultClient) CreateSharedClone(pristinePath, clonePath, branch string) error {
	repo, err := gogit.PlainInit(clonePath, false)
	if err != nil {
		return fmt.Errorf("failed to init clone: %w", err)
	}

	if err := writeAlternates(clonePath, pristinePath); err != nil {
		return err
	}

	if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: gogit.DefaultRemoteName,
		URLs: []string{pristinePath},
	}); err != nil {
		return fmt.Errorf("failed to add origin remote: %w", err)
	}

	err = repo.Fetch(&gogit.FetchOptions{
		RemoteName: gogit.DefaultRemoteName,
		RefSpecs:   []gitconfig.RefSpec{trackingRefSpec},
	})
	if err != nil && !stderrors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to fetch from mirror: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return err
	}

	trackingRef, err := repo.Reference(plumbing.NewRemoteReferenceName(gogit.DefaultRemoteName, branch), true)
	if err == nil {
		branchRef := plumbing.NewBranchReferenceName(branch)
		if err := repo.Storer.SetReference(plumbing.NewHashReference(branchRef, trackingRef.Hash())); err != nil {
			return fmt.Errorf("failed to create branch '%s': %w", branch, err)
		}
		return worktree.Checkout(&gogit.CheckoutOptions{Branch: branchRef, Force: true})
	}
	if !stderrors.Is(err, plumbing.ErrReferenceNotFound) {
		return err
	}

	// No tracking ref for the branch: detach at the mirror's head commit.
	logger.Debugf("git: no tracking ref for '%s' in %s, detaching at mirror head", branch, clonePath)
	pristine, err := gogit.PlainOpen(pristinePath)
	if err != nil {
		return err
	}
	head, err := pristine.Head()
	if err != nil {
		return fmt.Errorf("failed to resolve mirror head: %w", err)
	}
	return worktree.Checkout(&gogit.CheckoutOptions{Hash: head.Hash(), Force: true})
}

// writeAlternates points the clone's object database at the mirror's.
func writeAlternates(clonePath, pristinePath string) error {
	infoDir := filepath.Join(clonePath, ".git", "objects", "info")
	if err := os.MkdirAll(infoDir, 0750); err != nil {
		return fmt.Errorf("failed to create objects/info: %w", err)
	}
	alternates := filepath.Join(pristinePath, "objects") + "\n"
	if err := os.WriteFile(filepath.Join(infoDir, "alternates"), []byte(alternates), 0600); err != nil {
		return fmt.Errorf("failed to write alternates: %w", err)
	}
	return nil
}

// FetchCloneOrigin refreshes the clone's remote-tracking refs from the
// local mirror.
func (*DefaultClient) FetchCloneOrigin(clonePath string) error {
	repo, err := gogit.PlainOpen(clonePath)
	if err != nil {
		return err
	}
	err = repo.Fetch(&gogit.FetchOptions{
		RemoteName: gogit.DefaultRemoteName,
		RefSpecs:   []gitconfig.RefSpec{trackingRefSpec},
		Force:      true,
	})
	if stderrors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return nil
	}
	return err
}

// CurrentBranch returns the short name of the clone's checked-out branch,
// or "" for a detached head.
func (*DefaultClient) CurrentBranch(clonePath string) (string, error) {
	repo, err := gogit.PlainOpen(clonePath)
	if err != nil {
		return "", err
	}
	head, err := repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", err
	}
	if head.Type() != plumbing.SymbolicReference || !head.Target().IsBranch() {
		return "", nil
	}
	return head.Target().Short(), nil
}

// branchTips resolves the local and origin tracking tips for branch.
func branchTips(repo *gogit.Repository, branch string) (local, remote *plumbing.Reference, err error) {
	remote, err = repo.Reference(plumbing.NewRemoteReferenceName(gogit.DefaultRemoteName, branch), true)
	if err != nil {
		if stderrors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil, ErrNoTrackingRef
		}
		return nil, nil, err
	}

	local, err = repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil && !stderrors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil, err
	}
	if stderrors.Is(err, plumbing.ErrReferenceNotFound) {
		local = nil
	}
	return local, remote, nil
}

// Analyze classifies the branch tip against its origin tracking tip:
// identical hashes are up-to-date, a missing local tip is unborn, a local
// tip that is an ancestor of the remote is fast-forwardable, a remote tip
// already contained in the local history is up-to-date, anything else has
// diverged.
func (*DefaultClient) Analyze(clonePath, branch string) (MergeStatus, error) {
	repo, err := gogit.PlainOpen(clonePath)
	if err != nil {
		return MergeDiverged, err
	}

	local, remote, err := branchTips(repo, branch)
	if err != nil {
		return MergeDiverged, err
	}
	if local == nil {
		return MergeUnborn, nil
	}
	if local.Hash() == remote.Hash() {
		return MergeUpToDate, nil
	}

	localCommit, err := repo.CommitObject(local.Hash())
	if err != nil {
		return MergeDiverged, err
	}
	remoteCommit, err := repo.CommitObject(remote.Hash())
	if err != nil {
		return MergeDiverged, err
	}

	ff, err := localCommit.IsAncestor(remoteCommit)
	if err != nil {
		return MergeDiverged, err
	}
	if ff {
		return MergeFastForward, nil
	}

	contained, err := remoteCommit.IsAncestor(localCommit)
	if err != nil {
		return MergeDiverged, err
	}
	if contained {
		return MergeUpToDate, nil
	}
	return MergeDiverged, nil
}

// FastForward moves branch to the origin tracking tip and force-checks-out
// the working tree.
func (*DefaultClient) FastForward(clonePath, branch string) error {
	repo, err := gogit.PlainOpen(clonePath)
	if err != nil {
		return err
	}

	_, remote, err := branchTips(repo, branch)
	if err != nil {
		return err
	}

	branchRef := plumbing.NewBranchReferenceName(branch)
	if err := repo.Storer.SetReference(plumbing.NewHashReference(branchRef, remote.Hash())); err != nil {
		return fmt.Errorf("failed to move branch '%s': %w", branch, err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return err
	}
	return worktree.Checkout(&gogit.CheckoutOptions{Branch: branchRef, Force: true})
}

// AheadBehind counts commits reachable only from the local tip (ahead) and
// only from the remote tracking tip (behind), pruning each walk at their
// merge base.
func (*DefaultClient) AheadBehind(clonePath, branch string) (int, int, error) {
	repo, err := gogit.PlainOpen(clonePath)
	if err != nil {
		return 0, 0, err
	}

	local, remote, err := branchTips(repo, branch)
	if err != nil {
		return 0, 0, err
	}
	if local == nil {
		return 0, 0, errUnbornLocalTip
	}
	if local.Hash() == remote.Hash() {
		return 0, 0, nil
	}

	localCommit, err := repo.CommitObject(local.Hash())
	if err != nil {
		return 0, 0, err
	}
	remoteCommit, err := repo.CommitObject(remote.Hash())
	if err != nil {
		return 0, 0, err
	}

	bases, err := localCommit.MergeBase(remoteCommit)
	if err != nil {
		return 0, 0, err
	}
	var ignore []plumbing.Hash
	for _, base := range bases {
		ignore = append(ignore, base.Hash)
	}

	ahead, err := countCommits(localCommit, ignore)
	if err != nil {
		return 0, 0, err
	}
	behind, err := countCommits(remoteCommit, ignore)
	if err != nil {
		return 0, 0, err
	}
	return ahead, behind, nil
}

func countCommits(tip *object.Commit, ignore []plumbing.Hash) (int, error) {
	count := 0
	iter := object.NewCommitPreorderIter(tip, nil, ignore)
	err := iter.ForEach(func(*object.Commit) error {
		count++
		return nil
	})
	return count, err
}

// HeadCommitTime returns the committer timestamp of the head commit.
func (*DefaultClient) HeadCommitTime(clonePath string) (time.Time, error) {
	repo, err := gogit.PlainOpen(clonePath)
	if err != nil {
		return time.Time{}, err
	}
	head, err := repo.Head()
	if err != nil {
		return time.Time{}, err
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return time.Time{}, err
	}
	return commit.Committer.When, nil
}

// DirtyFiles counts working-tree entries that differ from HEAD.
func (*DefaultClient) DirtyFiles(clonePath string) (int, error) {
	repo, err := gogit.PlainOpen(clonePath)
	if err != nil {
		return 0, err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return 0, err
	}
	status, err := worktree.Status()
	if err != nil {
		return 0, err
	}

	dirty := 0
	for _, fileStatus := range status {
		if fileStatus.Worktree != gogit.Unmodified || fileStatus.Staging != gogit.Unmodified {
			dirty++
		}
	}
	return dirty, nil
}

// Branches lists the local branch names of a repository.
func (*DefaultClient) Branches(path string) ([]string, error) {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return nil, err
	}
	iter, err := repo.Branches()
	if err != nil {
		return nil, err
	}

	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	return names, err
}

// Repack compacts the object storage of a repository.
func (*DefaultClient) Repack(path string) error {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return err
	}
	return repo.RepackObjects(&gogit.RepackConfig{})
}

// AlternatesTarget reads the alternates back-reference of a clone and
// returns the referenced object directory, or "" when the clone has none.
func AlternatesTarget(clonePath string) (string, error) {
	data, err := os.ReadFile(filepath.Join(clonePath, ".git", "objects", "info", "alternates"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
