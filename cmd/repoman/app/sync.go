package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwbla/repoman/pkg/lifecycle"
	"github.com/jwbla/repoman/pkg/metadata"
	"github.com/jwbla/repoman/pkg/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync [name]",
	Short: "Fetch a pristine mirror from its remote",
	Long: `Fetch all branches and tags into a repository's pristine mirror. With no
argument, every initialized repository is synced, one worker per
repository. Clones are not touched; use update for that.`,
	Args: cobra.MaximumNArgs(1),
	RunE: syncCmdFunc,
}

func syncCmdFunc(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	syn := syncer.New(cfg)
	ctx := cmd.Context()

	if len(args) == 1 {
		if err := syn.SyncPristine(ctx, args[0], metadata.SyncManual); err != nil {
			return err
		}
		fmt.Printf("Synced '%s'\n", args[0])
		return nil
	}

	names, err := lifecycle.NewManager(cfg).SyncableRepos()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("No initialized repositories to sync")
		return nil
	}

	succeeded, failed := runBatch(names, "synced", func(name string) error {
		return syn.SyncPristine(ctx, name, metadata.SyncManual)
	})
	printTally(succeeded, failed)
	return nil
}
