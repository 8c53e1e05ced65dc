package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwbla/repoman/pkg/errors"
	"github.com/jwbla/repoman/pkg/gc"
	"github.com/jwbla/repoman/pkg/lifecycle"
)

var destroyCmd = &cobra.Command{
	Use:   "destroy [target]",
	Short: "Destroy a pristine or a clone",
	Long: `Destroy what the target names: a pristine mirror, a full clone directory,
or a clone suffix, tried in that order. Vault entries always survive;
re-initialize with init.`,
	Args: cobra.MaximumNArgs(1),
	RunE: destroyCmdFunc,
}

var (
	destroyAllClones    string
	destroyAllPristines bool
	destroyStaleDays    uint
)

func init() {
	destroyCmd.Flags().StringVar(&destroyAllClones, "all-clones", "", "Destroy every clone of the named pristine")
	destroyCmd.Flags().BoolVar(&destroyAllPristines, "all-pristines", false, "Destroy every pristine mirror (vault entries survive)")
	destroyCmd.Flags().UintVar(&destroyStaleDays, "stale", 0, "Destroy clones whose head commit is older than this many days")
	destroyCmd.MarkFlagsMutuallyExclusive("all-clones", "all-pristines", "stale")
}

func destroyCmdFunc(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	mgr := lifecycle.NewManager(cfg)
	ctx := cmd.Context()

	switch {
	case destroyAllClones != "":
		removed, err := mgr.DestroyAllClones(ctx, destroyAllClones)
		if err != nil {
			return err
		}
		fmt.Printf("Destroyed %d clone(s) of '%s'\n", len(removed), destroyAllClones)
		return nil

	case destroyAllPristines:
		removed, err := mgr.DestroyAllPristines(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Destroyed %d pristine(s)\n", len(removed))
		return nil

	case destroyStaleDays > 0:
		removed, err := gc.New(cfg).DestroyStale(ctx, destroyStaleDays)
		if err != nil {
			return err
		}
		fmt.Printf("Destroyed %d stale clone(s)\n", len(removed))
		return nil
	}

	if len(args) != 1 {
		return errors.NewInvalidInputError("destroy needs a target or one of --all-clones, --all-pristines, --stale", nil)
	}
	if err := mgr.DestroyTarget(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("Destroyed '%s'\n", args[0])
	return nil
}
