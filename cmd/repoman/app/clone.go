package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwbla/repoman/pkg/lifecycle"
)

var cloneCmd = &cobra.Command{
	Use:   "clone <pristine> [clone-name]",
	Short: "Create a working copy from a pristine mirror",
	Long: `Create a working copy that shares the pristine's object store. The clone
directory is named <pristine>-<clone-name>; with no name a random
six-character suffix is generated.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: cloneCmdFunc,
}

var cloneBranch string

func init() {
	cloneCmd.Flags().StringVarP(&cloneBranch, "branch", "b", "", "Branch to check out (defaults to the mirror's default branch)")
}

func cloneCmdFunc(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cloneName := ""
	if len(args) == 2 {
		cloneName = args[1]
	}

	result, err := lifecycle.NewManager(cfg).Clone(cmd.Context(), args[0], cloneName, cloneBranch)
	if err != nil {
		return err
	}
	fmt.Printf("Created clone '%s' on branch '%s'\n  %s\n", result.DirName, result.Branch, result.Path)
	return nil
}
