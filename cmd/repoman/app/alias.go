package app

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jwbla/repoman/pkg/errors"
	"github.com/jwbla/repoman/pkg/vault"
)

var aliasCmd = &cobra.Command{
	Use:   "alias [name] [alias]",
	Short: "Manage repository aliases",
	Long: `Create an alias for a repository name, remove one with --remove, or list
all aliases when called with no arguments.`,
	Args: cobra.MaximumNArgs(2),
	RunE: aliasCmdFunc,
}

var aliasRemove bool

func init() {
	aliasCmd.Flags().BoolVarP(&aliasRemove, "remove", "r", false, "Remove the alias instead of creating it")
}

func aliasCmdFunc(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store := vault.NewStore(cfg.VaultDir)

	if len(args) == 0 {
		v, err := store.Load()
		if err != nil {
			return err
		}
		if len(v.Aliases) == 0 {
			fmt.Println("No aliases defined")
			return nil
		}
		aliases := make([]string, 0, len(v.Aliases))
		for alias := range v.Aliases {
			aliases = append(aliases, alias)
		}
		sort.Strings(aliases)
		for _, alias := range aliases {
			fmt.Printf("  %s -> %s\n", alias, v.Aliases[alias])
		}
		return nil
	}

	if aliasRemove {
		if err := store.Update(cmd.Context(), func(v *vault.Vault) error {
			return v.RemoveAlias(args[0])
		}); err != nil {
			return err
		}
		fmt.Printf("Removed alias '%s'\n", args[0])
		return nil
	}

	if len(args) != 2 {
		return errors.NewInvalidInputError("alias needs a repository name and an alias", nil)
	}
	name, alias := args[0], args[1]
	if err := store.Update(cmd.Context(), func(v *vault.Vault) error {
		return v.AddAlias(alias, v.Resolve(name))
	}); err != nil {
		return err
	}
	fmt.Printf("Added alias '%s' for '%s'\n", alias, name)
	return nil
}
