// Package tags tracks the latest upstream tag for each repository,
// preferring semantic-version ordering when tags parse as versions.
package tags

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/jwbla/repoman/pkg/auth"
	"github.com/jwbla/repoman/pkg/config"
	"github.com/jwbla/repoman/pkg/errors"
	"github.com/jwbla/repoman/pkg/git"
	"github.com/jwbla/repoman/pkg/logger"
	"github.com/jwbla/repoman/pkg/metadata"
	"github.com/jwbla/repoman/pkg/vault"
)

const tagRefPrefix = "refs/tags/"

// Tracker checks remotes for new tags and persists the latest one.
type Tracker struct {
	cfg   *config.Config
	vault *vault.Store
	meta  *metadata.Store
	git   git.Client
}

// New creates a Tracker backed by the default go-git client.
func New(cfg *config.Config) *Tracker {
	return NewWithClient(cfg, git.NewDefaultClient())
}

// NewWithClient creates a Tracker with an explicit backend client.
func NewWithClient(cfg *config.Config, client git.Client) *Tracker {
	return &Tracker{
		cfg:   cfg,
		vault: vault.NewStore(cfg.VaultDir),
		meta:  metadata.NewStore(cfg.VaultDir),
		git:   client,
	}
}

// CheckForNewTag lists the remote's tags and returns the winning tag if it
// differs from the recorded one. changed is false when there is nothing
// new (including the no-tags case).
func (t *Tracker) CheckForNewTag(name string) (tag string, changed bool, err error) {
	v, err := t.vault.Load()
	if err != nil {
		return "", false, err
	}
	entry := v.Get(name)
	if entry == nil {
		return "", false, errors.NewNotFoundError(fmt.Sprintf("repository '%s' not found in vault", name), nil)
	}

	meta, err := t.meta.Load(entry.Name)
	if err != nil {
		return "", false, err
	}
	url, err := meta.DefaultURL()
	if err != nil {
		return "", false, err
	}

	attempt := auth.NewNegotiator(entry.Name, meta.AuthConfig).Begin()
	cred, err := attempt.Credentials(url)
	if err != nil {
		return "", false, auth.WrapGitError(err, entry.Name)
	}

	refs, err := t.git.ListRemoteRefs(url, cred)
	if err != nil {
		return "", false, auth.WrapGitError(err, entry.Name)
	}

	latest := LatestTag(tagNames(refs))
	if latest == "" || latest == meta.LatestTag {
		return latest, false, nil
	}
	logger.Debugf("New tag for '%s': %s (was %q)", entry.Name, latest, meta.LatestTag)
	return latest, true, nil
}

// UpdateLatestTag persists the latest tag for a repository.
func (t *Tracker) UpdateLatestTag(ctx context.Context, name, tag string) error {
	v, err := t.vault.Load()
	if err != nil {
		return err
	}
	canonical := v.Resolve(name)

	return t.meta.Update(ctx, canonical, func(meta *metadata.Metadata) error {
		meta.LatestTag = tag
		meta.Touch()
		return nil
	})
}

// tagNames extracts plain tag names from fully qualified refs, dropping
// dereferenced annotated-tag markers.
func tagNames(refs []string) []string {
	var names []string
	for _, ref := range refs {
		if !strings.HasPrefix(ref, tagRefPrefix) || strings.HasSuffix(ref, "^{}") {
			continue
		}
		names = append(names, strings.TrimPrefix(ref, tagRefPrefix))
	}
	return names
}

// LatestTag picks the winning tag: the greatest semantic version when any
// tag parses as one (an optional single v/V prefix is accepted), otherwise
// the lexicographically greatest tag. Empty input yields "".
func LatestTag(names []string) string {
	var (
		bestVersion *semver.Version
		bestSemver  string
		bestPlain   string
	)

	for _, name := range names {
		if v := parseVersion(name); v != nil {
			if bestVersion == nil || v.GreaterThan(bestVersion) {
				bestVersion = v
				bestSemver = name
			}
			continue
		}
		if name > bestPlain {
			bestPlain = name
		}
	}

	if bestSemver != "" {
		return bestSemver
	}
	return bestPlain
}

func parseVersion(name string) *semver.Version {
	trimmed := name
	if len(trimmed) > 1 && (trimmed[0] == 'v' || trimmed[0] == 'V') {
		trimmed = trimmed[1:]
	}
	v, err := semver.StrictNewVersion(trimmed)
	if err != nil {
		return nil
	}
	return v
}
