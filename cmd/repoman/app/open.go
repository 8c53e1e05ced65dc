package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jwbla/repoman/pkg/config"
	"github.com/jwbla/repoman/pkg/errors"
	"github.com/jwbla/repoman/pkg/metadata"
	"github.com/jwbla/repoman/pkg/vault"
)

var openCmd = &cobra.Command{
	Use:   "open <target>",
	Short: "Print the filesystem path of a pristine or clone",
	Long: `Resolve a pristine name, clone suffix, or clone directory name and print
its path to stdout, suitable for 'cd $(repoman open foo)'.`,
	Args: cobra.ExactArgs(1),
	RunE: openCmdFunc,
}

func openCmdFunc(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path, err := findPath(cfg, args[0])
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

// findPath resolves a target in order: pristine name, clone suffix
// recorded in any repository's metadata, full clone directory name.
func findPath(cfg *config.Config, target string) (string, error) {
	v, err := vault.NewStore(cfg.VaultDir).Load()
	if err != nil {
		return "", err
	}
	resolved := v.Resolve(target)

	pristinePath := cfg.PristinePath(resolved)
	if _, err := os.Stat(pristinePath); err == nil {
		return pristinePath, nil
	}

	metaStore := metadata.NewStore(cfg.VaultDir)
	for _, name := range v.Names() {
		meta, err := metaStore.Load(name)
		if err != nil {
			continue
		}
		if clone := meta.GetClone(target); clone != nil {
			if _, err := os.Stat(clone.Path); err == nil {
				return clone.Path, nil
			}
		}
	}

	clonePath := filepath.Join(cfg.ClonesDir, target)
	if _, err := os.Stat(clonePath); err == nil {
		return clonePath, nil
	}

	return "", errors.NewNotFoundError(fmt.Sprintf("'%s' matches no pristine or clone", target), nil)
}
