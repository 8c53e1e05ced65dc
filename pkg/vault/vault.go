// Package vault implements the persistent registry of repositories: the
// name-to-URL directory and the alias table that resolves short names to
// canonical repository names.
package vault

import (
	"fmt"
	"strings"
	"time"

	"github.com/jwbla/repoman/pkg/errors"
)

// Entry is a single registered repository.
type Entry struct {
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	AddedDate time.Time `json:"added_date"`
}

// Vault is the registry snapshot: entries plus the alias table. Aliases map
// a short name to a canonical entry name; resolution is single-level, no
// chains.
type Vault struct {
	Entries []Entry           `json:"entries"`
	Aliases map[string]string `json:"aliases"`
}

// New returns an empty vault.
func New() *Vault {
	return &Vault{Aliases: make(map[string]string)}
}

// Resolve maps an alias to its canonical name, or returns the input
// unchanged when no alias matches.
func (v *Vault) Resolve(nameOrAlias string) string {
	if canonical, ok := v.Aliases[nameOrAlias]; ok {
		return canonical
	}
	return nameOrAlias
}

// Get returns the entry for a name or alias, or nil when absent.
func (v *Vault) Get(nameOrAlias string) *Entry {
	resolved := v.Resolve(nameOrAlias)
	for i := range v.Entries {
		if v.Entries[i].Name == resolved {
			return &v.Entries[i]
		}
	}
	return nil
}

// Contains reports whether a name or alias resolves to a registered
// repository.
func (v *Vault) Contains(nameOrAlias string) bool {
	return v.Get(nameOrAlias) != nil
}

// Names returns all canonical repository names.
func (v *Vault) Names() []string {
	names := make([]string, 0, len(v.Entries))
	for _, e := range v.Entries {
		names = append(names, e.Name)
	}
	return names
}

// Add registers a repository. It fails when the name is already taken.
func (v *Vault) Add(name, url string) error {
	if v.Get(name) != nil {
		return errors.NewAlreadyExistsError(fmt.Sprintf("repository '%s' already exists in vault", name), nil)
	}
	v.Entries = append(v.Entries, Entry{
		Name:      name,
		URL:       url,
		AddedDate: time.Now().UTC(),
	})
	return nil
}

// Remove deletes an entry by canonical name and returns it, or nil when the
// name was not registered. Alias cleanup is the caller's job via
// RemoveAliasesFor.
func (v *Vault) Remove(name string) *Entry {
	for i := range v.Entries {
		if v.Entries[i].Name == name {
			removed := v.Entries[i]
			v.Entries = append(v.Entries[:i], v.Entries[i+1:]...)
			return &removed
		}
	}
	return nil
}

// AddAlias maps alias to a canonical repository name. It fails when the
// target name is not registered.
func (v *Vault) AddAlias(alias, name string) error {
	found := false
	for _, e := range v.Entries {
		if e.Name == name {
			found = true
			break
		}
	}
	if !found {
		return errors.NewNotFoundError(fmt.Sprintf("repository '%s' not found in vault", name), nil)
	}
	if v.Aliases == nil {
		v.Aliases = make(map[string]string)
	}
	v.Aliases[alias] = name
	return nil
}

// RemoveAlias deletes an alias. It fails when the alias does not exist.
func (v *Vault) RemoveAlias(alias string) error {
	if _, ok := v.Aliases[alias]; !ok {
		return errors.NewNotFoundError(fmt.Sprintf("alias '%s' not found", alias), nil)
	}
	delete(v.Aliases, alias)
	return nil
}

// RemoveAliasesFor deletes every alias pointing at the given canonical name
// and returns the removed alias keys. Used during repository removal.
func (v *Vault) RemoveAliasesFor(name string) []string {
	var removed []string
	for alias, target := range v.Aliases {
		if target == name {
			removed = append(removed, alias)
		}
	}
	for _, alias := range removed {
		delete(v.Aliases, alias)
	}
	return removed
}

// ExtractRepoName derives the canonical repository name from a git URL:
// the final path segment with any trailing ".git" stripped. Supported
// shapes include https://host/u/r(.git), scp-style user@host:u/r(.git),
// nested groups, trailing slashes and bare filesystem paths.
func ExtractRepoName(url string) (string, error) {
	trimmed := strings.TrimSpace(url)
	trimmed = strings.TrimSuffix(trimmed, ".git")
	trimmed = strings.TrimSuffix(trimmed, "/")

	var tail string
	if strings.Contains(trimmed, ":") && !strings.Contains(trimmed, "://") {
		// scp-style SSH: user@host:group/repo
		tail = trimmed[strings.LastIndex(trimmed, ":")+1:]
	} else {
		tail = trimmed
	}
	if idx := strings.LastIndex(tail, "/"); idx >= 0 {
		tail = tail[idx+1:]
	}

	if tail == "" {
		return "", errors.NewInvalidInputError(fmt.Sprintf("could not extract repository name from URL '%s'", url), nil)
	}
	return tail, nil
}
