package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwbla/repoman/pkg/lifecycle"
	"github.com/jwbla/repoman/pkg/metadata"
	"github.com/jwbla/repoman/pkg/syncer"
)

var updateCmd = &cobra.Command{
	Use:   "update [name]",
	Short: "Sync a pristine and fast-forward its clones",
	Long: `Sync a repository's mirror from its remote, then fast-forward every clone
whose branch allows it. Diverged clones are reported and left alone. With
no argument, every initialized repository is updated.`,
	Args: cobra.MaximumNArgs(1),
	RunE: updateCmdFunc,
}

func updateCmdFunc(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	syn := syncer.New(cfg)
	ctx := cmd.Context()

	if len(args) == 1 {
		report, err := syn.UpdateRepo(ctx, args[0], metadata.SyncManual)
		if err != nil {
			return err
		}
		printUpdateReport(report)
		return nil
	}

	names, err := lifecycle.NewManager(cfg).SyncableRepos()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("No initialized repositories to update")
		return nil
	}

	succeeded, failed := runBatch(names, "updated", func(name string) error {
		report, err := syn.UpdateRepo(ctx, name, metadata.SyncManual)
		if err != nil {
			return err
		}
		printUpdateReport(report)
		return nil
	})
	printTally(succeeded, failed)
	return nil
}

func printUpdateReport(report *syncer.UpdateReport) {
	fmt.Printf("Updated '%s'\n", report.Repo)
	for _, clone := range report.Clones {
		if clone.Reason != "" {
			fmt.Printf("  clone %s: %s (%s)\n", clone.Suffix, clone.State, clone.Reason)
		} else {
			fmt.Printf("  clone %s: %s\n", clone.Suffix, clone.State)
		}
	}
}
