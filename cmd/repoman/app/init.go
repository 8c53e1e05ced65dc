package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwbla/repoman/pkg/lifecycle"
)

var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Create the pristine mirror for a repository",
	Long: `Create the bare mirror for a vaulted repository. With no argument, every
repository without a mirror is initialized, one worker per repository.`,
	Args: cobra.MaximumNArgs(1),
	RunE: initCmdFunc,
}

func initCmdFunc(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	mgr := lifecycle.NewManager(cfg)
	ctx := cmd.Context()

	if len(args) == 1 {
		if err := mgr.InitPristine(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Initialized pristine for '%s'\n", args[0])
		return nil
	}

	names, err := mgr.UninitializedRepos()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("All repositories are already initialized")
		return nil
	}

	succeeded, failed := runBatch(names, "initialized", func(name string) error {
		return mgr.InitPristine(ctx, name)
	})
	printTally(succeeded, failed)
	return nil
}
