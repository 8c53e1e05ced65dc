// Package auth selects credentials for remote git operations.
//
// A Negotiator is built from a repository's optional auth configuration and
// hands out one credential per connection attempt, in a fixed order of
// preference: explicit SSH key, ssh-agent, ambient credentials, token from
// an environment variable for HTTPS remotes. A connection that asks twice is
// refused outright so a remote that keeps re-challenging after a rejected
// credential cannot loop forever.
package auth

import (
	stderrors "errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync/atomic"

	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"github.com/jwbla/repoman/pkg/errors"
	"github.com/jwbla/repoman/pkg/logger"
	"github.com/jwbla/repoman/pkg/metadata"
)

// ErrCredentialRetry is returned when a connection attempt requests
// credentials more than once.
var ErrCredentialRetry = stderrors.New("credential already consumed for this connection attempt")

// ErrNoCredentials is returned when no strategy in the chain applies to the
// remote URL.
var ErrNoCredentials = stderrors.New("no valid credentials available")

// Negotiator produces credential attempts for one repository.
type Negotiator struct {
	repoName string
	cfg      *metadata.AuthConfig
}

// NewNegotiator creates a negotiator for the given repository. cfg may be
// nil when the repository carries no auth hints.
func NewNegotiator(repoName string, cfg *metadata.AuthConfig) *Negotiator {
	return &Negotiator{repoName: repoName, cfg: cfg}
}

// Attempt is the credential state for a single connection. Credentials may
// be consumed exactly once.
type Attempt struct {
	neg  *Negotiator
	used atomic.Bool
}

// Begin starts a fresh connection attempt.
func (n *Negotiator) Begin() *Attempt {
	return &Attempt{neg: n}
}

// Credentials returns the credential for the given remote URL, or nil when
// the remote needs none (local paths, anonymous HTTPS). Any second call on
// the same attempt fails unconditionally.
func (a *Attempt) Credentials(remoteURL string) (transport.AuthMethod, error) {
	if a.used.Swap(true) {
		logger.Debugf("auth: rejecting credential retry for '%s'", a.neg.repoName)
		return nil, ErrCredentialRetry
	}
	return a.neg.selectMethod(remoteURL)
}

func (n *Negotiator) selectMethod(remoteURL string) (transport.AuthMethod, error) {
	switch {
	case isSSHURL(remoteURL):
		user := sshUser(remoteURL)
		if n.cfg != nil && n.cfg.SSHKeyPath != "" {
			logger.Debugf("auth: using SSH key %s for '%s'", n.cfg.SSHKeyPath, n.repoName)
			keys, err := gitssh.NewPublicKeysFromFile(user, n.cfg.SSHKeyPath, "")
			if err != nil {
				return nil, fmt.Errorf("failed to load SSH key %s: %w", n.cfg.SSHKeyPath, err)
			}
			return keys, nil
		}
		logger.Debugf("auth: using ssh-agent for '%s' as user '%s'", n.repoName, user)
		agentAuth, err := gitssh.NewSSHAgentAuth(user)
		if err != nil {
			return nil, fmt.Errorf("%w: ssh-agent unavailable: %v", ErrNoCredentials, err)
		}
		return agentAuth, nil

	case isHTTPURL(remoteURL):
		if n.cfg != nil && n.cfg.TokenEnvVar != "" {
			if token := os.Getenv(n.cfg.TokenEnvVar); token != "" {
				logger.Debugf("auth: using token from %s for '%s'", n.cfg.TokenEnvVar, n.repoName)
				return &githttp.BasicAuth{Username: "git", Password: token}, nil
			}
			logger.Debugf("auth: env var %s unset, falling through", n.cfg.TokenEnvVar)
		}
		// Ambient credentials: let the transport proceed anonymously and
		// pick up whatever the platform provides.
		return nil, nil

	default:
		// Local paths need no authentication.
		return nil, nil
	}
}

// isSSHURL reports whether the URL uses SSH transport, either explicit
// ssh:// or the scp-style user@host:path shape.
func isSSHURL(remoteURL string) bool {
	if strings.HasPrefix(remoteURL, "ssh://") {
		return true
	}
	// scp-style: has user@host:path and no scheme separator
	if strings.Contains(remoteURL, "://") {
		return false
	}
	at := strings.Index(remoteURL, "@")
	colon := strings.Index(remoteURL, ":")
	return at > 0 && colon > at
}

func isHTTPURL(remoteURL string) bool {
	return strings.HasPrefix(remoteURL, "http://") || strings.HasPrefix(remoteURL, "https://")
}

// sshUser extracts the username from an SSH URL, defaulting to "git".
func sshUser(remoteURL string) string {
	if strings.HasPrefix(remoteURL, "ssh://") {
		if u, err := url.Parse(remoteURL); err == nil && u.User != nil {
			if name := u.User.Username(); name != "" {
				return name
			}
		}
		return "git"
	}
	if at := strings.Index(remoteURL, "@"); at > 0 {
		return remoteURL[:at]
	}
	return "git"
}

// IsAuthError reports whether a backend error looks like an authentication
// failure.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, transport.ErrAuthenticationRequired) ||
		stderrors.Is(err, transport.ErrAuthorizationFailed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "auth") ||
		strings.Contains(msg, "credential") ||
		strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "handshake failed")
}

// WrapGitError reclassifies a backend error: authentication failures become
// the distinguished Authentication error with remediation guidance, keyed by
// repository; anything else is wrapped as a backend error.
func WrapGitError(err error, repoName string) error {
	if err == nil {
		return nil
	}
	if IsAuthError(err) {
		return errors.NewAuthenticationError(repoName, err)
	}
	return errors.NewBackendError(fmt.Sprintf("git operation failed for '%s'", repoName), err)
}
