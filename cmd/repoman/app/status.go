package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jwbla/repoman/pkg/errors"
	"github.com/jwbla/repoman/pkg/git"
	"github.com/jwbla/repoman/pkg/metadata"
	"github.com/jwbla/repoman/pkg/vault"
)

var statusCmd = &cobra.Command{
	Use:   "status <name>",
	Short: "Show detailed status for a repository",
	Long: `Show a repository's mirror, branches, clones and their working-tree state,
including a health check of each clone's shared-object back-reference.`,
	Args: cobra.ExactArgs(1),
	RunE: statusCmdFunc,
}

func statusCmdFunc(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	v, err := vault.NewStore(cfg.VaultDir).Load()
	if err != nil {
		return err
	}
	entry := v.Get(args[0])
	if entry == nil {
		return errors.NewNotFoundError(fmt.Sprintf("repository '%s' not found in vault", args[0]), nil)
	}

	meta, err := metadata.NewStore(cfg.VaultDir).Load(entry.Name)
	if err != nil {
		return err
	}

	client := git.NewDefaultClient()
	pristinePath := cfg.PristinePath(entry.Name)
	_, pristineErr := os.Stat(pristinePath)
	pristineExists := pristineErr == nil

	fmt.Printf("Repository: %s\n", entry.Name)
	fmt.Printf("  URL: %s\n", entry.URL)
	if pristineExists {
		fmt.Println("  Pristine: yes")
		if branches, err := client.Branches(pristinePath); err == nil && len(branches) > 0 {
			fmt.Printf("  Branches: %s\n", strings.Join(branches, ", "))
		}
	} else {
		fmt.Println("  Pristine: no")
	}
	if meta.LatestTag != "" {
		fmt.Printf("  Latest tag: %s\n", meta.LatestTag)
	}
	if meta.LastSync != nil {
		fmt.Printf("  Last sync: %s\n", formatSyncTime(meta.LastSync))
	}
	if meta.SyncInterval != nil {
		fmt.Printf("  Sync interval: %ds\n", *meta.SyncInterval)
	}

	if len(meta.Clones) == 0 {
		fmt.Println("  Clones: none")
		return nil
	}

	fmt.Printf("  Clones (%d):\n", len(meta.Clones))
	alternatesOK := true
	for _, clone := range meta.Clones {
		if _, err := os.Stat(clone.Path); err != nil {
			fmt.Printf("    %s: directory missing\n", clone.Name)
			continue
		}
		fmt.Printf("    %s on %s\n", clone.Name, describeClone(client, clone))
		if !alternatesHealthy(clone.Path) {
			alternatesOK = false
		}
	}
	if !alternatesOK {
		fmt.Println("  WARNING: alternates health check failed")
	}
	return nil
}

// describeClone summarizes a clone's branch, dirtiness and divergence.
func describeClone(client git.Client, clone metadata.CloneEntry) string {
	branch, err := client.CurrentBranch(clone.Path)
	if err != nil {
		return "unreadable repository"
	}

	desc := branch
	if branch == "" {
		desc = "detached"
	}
	if dirty, err := client.DirtyFiles(clone.Path); err == nil && dirty > 0 {
		desc += fmt.Sprintf(" (%d dirty)", dirty)
	}
	if branch != "" {
		if ahead, behind, err := client.AheadBehind(clone.Path, branch); err == nil && (ahead > 0 || behind > 0) {
			desc += fmt.Sprintf(" [+%d/-%d]", ahead, behind)
		}
	}
	return desc
}

// alternatesHealthy verifies the clone's back-reference points at an
// existing object directory.
func alternatesHealthy(clonePath string) bool {
	target, err := git.AlternatesTarget(clonePath)
	if err != nil || target == "" {
		return false
	}
	_, err = os.Stat(target)
	return err == nil
}
