package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwbla/repoman/pkg/gc"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Garbage-collect stale clones and compact pristines",
	Long: `Remove clones whose head commit is older than the threshold and compact
every pristine mirror's object storage. A dry run reports the same
candidates without touching anything.`,
	RunE: gcCmdFunc,
}

var (
	gcDays   uint
	gcDryRun bool
)

func init() {
	gcCmd.Flags().UintVar(&gcDays, "days", 30, "Staleness threshold in days")
	gcCmd.Flags().BoolVar(&gcDryRun, "dry-run", false, "Report candidates without removing or compacting anything")
}

func gcCmdFunc(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	report, err := gc.New(cfg).Run(cmd.Context(), gcDays, gcDryRun)
	if err != nil {
		return err
	}

	if report.DryRun {
		fmt.Printf("Dry run: %d stale clone(s) older than %d days\n", len(report.Stale), gcDays)
		for _, clone := range report.Stale {
			fmt.Printf("  %s/%s (head %s)\n", clone.Repo, clone.Suffix, clone.HeadTime.Local().Format("2006-01-02"))
		}
		return nil
	}

	fmt.Printf("Compacted %d mirror(s), removed %d stale clone(s)\n", report.CompactedMirrors, len(report.Removed))
	for _, clone := range report.Removed {
		fmt.Printf("  removed %s/%s\n", clone.Repo, clone.Suffix)
	}
	return nil
}
