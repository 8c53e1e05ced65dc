package app

import (
	"fmt"
	"os"
	"sort"

	gogit "github.com/go-git/go-git/v5"
	"github.com/spf13/cobra"

	"github.com/jwbla/repoman/pkg/errors"
	"github.com/jwbla/repoman/pkg/metadata"
	"github.com/jwbla/repoman/pkg/vault"
)

var addCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Add a repository to the vault",
	Long: `Add a repository to the vault by URL. With no argument, the remotes of the
git repository containing the current directory are detected and the
default remote's URL is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: addCmdFunc,
}

func addCmdFunc(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var urls []string
	if len(args) == 1 {
		urls = []string{args[0]}
	} else {
		urls, err = detectCurrentRepoURLs()
		if err != nil {
			return err
		}
	}

	name, err := vault.ExtractRepoName(urls[0])
	if err != nil {
		return err
	}

	err = vault.NewStore(cfg.VaultDir).Update(cmd.Context(), func(v *vault.Vault) error {
		return v.Add(name, urls[0])
	})
	if err != nil {
		return err
	}
	if err := metadata.NewStore(cfg.VaultDir).Save(name, metadata.New(urls)); err != nil {
		return err
	}

	fmt.Printf("Added '%s' (%s)\n", name, urls[0])
	return nil
}

// detectCurrentRepoURLs returns the remote URLs of the repository
// containing the working directory, default remote first. The default is
// the current branch's configured remote, falling back to origin, then to
// the alphabetically first remote.
func detectCurrentRepoURLs() ([]string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	repo, err := gogit.PlainOpenWithOptions(cwd, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, errors.NewInvalidInputError("current directory is not inside a git repository", err)
	}

	repoCfg, err := repo.Config()
	if err != nil {
		return nil, err
	}
	if len(repoCfg.Remotes) == 0 {
		return nil, errors.NewInvalidInputError("repository has no remotes", nil)
	}

	var defaultRemote string
	if head, err := repo.Head(); err == nil && head.Name().IsBranch() {
		if branch, ok := repoCfg.Branches[head.Name().Short()]; ok && branch.Remote != "" {
			if _, ok := repoCfg.Remotes[branch.Remote]; ok {
				defaultRemote = branch.Remote
			}
		}
	}

	names := make([]string, 0, len(repoCfg.Remotes))
	for name := range repoCfg.Remotes {
		names = append(names, name)
	}
	sort.Strings(names)

	if defaultRemote == "" {
		if _, ok := repoCfg.Remotes[gogit.DefaultRemoteName]; ok {
			defaultRemote = gogit.DefaultRemoteName
		} else {
			defaultRemote = names[0]
		}
	}

	urls := []string{repoCfg.Remotes[defaultRemote].URLs[0]}
	for _, name := range names {
		if name == defaultRemote {
			continue
		}
		if remote := repoCfg.Remotes[name]; len(remote.URLs) > 0 {
			urls = append(urls, remote.URLs[0])
		}
	}
	return urls, nil
}
