package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwbla/repoman/pkg/lifecycle"
)

var removeCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a repository from the vault and delete all its data",
	Long: `Remove a repository entirely: its pristine mirror, every clone, the
metadata directory, the vault entry and any aliases pointing at it.`,
	Args: cobra.ExactArgs(1),
	RunE: removeCmdFunc,
}

func removeCmdFunc(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	entry, err := lifecycle.NewManager(cfg).RemoveRepository(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Removed '%s' and all its data\n", entry.Name)
	return nil
}
