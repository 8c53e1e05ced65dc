package app

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/jwbla/repoman/pkg/config"
	"github.com/jwbla/repoman/pkg/metadata"
	"github.com/jwbla/repoman/pkg/vault"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all repositories and their status",
	Long:  `List every vaulted repository with its pristine, clone and sync status.`,
	RunE:  listCmdFunc,
}

var listVerbose bool

func init() {
	listCmd.Flags().BoolVarP(&listVerbose, "verbose", "v", false, "Show clone details, aliases and paths")
}

func listCmdFunc(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	v, err := vault.NewStore(cfg.VaultDir).Load()
	if err != nil {
		return err
	}
	if len(v.Entries) == 0 {
		fmt.Println("Vault is empty; use 'repoman add' to register a repository")
		return nil
	}

	metaStore := metadata.NewStore(cfg.VaultDir)

	table := tablewriter.NewWriter(os.Stdout)
	table.Options(
		tablewriter.WithHeader([]string{"Name", "URL", "Pristine", "Clones", "Last Sync", "Latest Tag"}),
		tablewriter.WithAlignment(tw.MakeAlign(6, tw.AlignLeft)),
	)

	for _, entry := range v.Entries {
		pristine := "no"
		if _, err := os.Stat(cfg.PristinePath(entry.Name)); err == nil {
			pristine = "yes"
		}

		cloneCount := "0"
		lastSync := "never"
		latestTag := "-"
		meta, err := metaStore.Load(entry.Name)
		if err == nil {
			cloneCount = strconv.Itoa(len(meta.Clones))
			if meta.LastSync != nil {
				lastSync = formatSyncTime(meta.LastSync)
			}
			if meta.LatestTag != "" {
				latestTag = meta.LatestTag
			}
		}

		if err := table.Append([]string{entry.Name, entry.URL, pristine, cloneCount, lastSync, latestTag}); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	if listVerbose {
		printVerboseListing(cfg, v, metaStore)
	}
	return nil
}

func formatSyncTime(sync *metadata.SyncInfo) string {
	return fmt.Sprintf("%s (%s)", sync.Timestamp.Local().Format("2006-01-02 15:04"), sync.Kind)
}

func printVerboseListing(cfg *config.Config, v *vault.Vault, metaStore *metadata.Store) {
	for _, entry := range v.Entries {
		fmt.Printf("\n%s\n", entry.Name)
		fmt.Printf("  Added: %s\n", entry.AddedDate.Local().Format("2006-01-02 15:04"))
		if _, err := os.Stat(cfg.PristinePath(entry.Name)); err == nil {
			fmt.Printf("  Pristine: %s\n", cfg.PristinePath(entry.Name))
		}

		meta, err := metaStore.Load(entry.Name)
		if err != nil {
			continue
		}
		if meta.DefaultBranch != "" {
			fmt.Printf("  Default branch: %s\n", meta.DefaultBranch)
		}
		if meta.SyncInterval != nil {
			fmt.Printf("  Sync interval: %ds\n", *meta.SyncInterval)
		}
		for _, clone := range meta.Clones {
			age := time.Since(clone.Created).Round(time.Hour)
			fmt.Printf("  Clone %s: %s (created %s ago)\n", clone.Name, clone.Path, age)
		}
	}

	if len(v.Aliases) > 0 {
		fmt.Println("\nAliases:")
		for alias, name := range v.Aliases {
			fmt.Printf("  %s -> %s\n", alias, name)
		}
	}
}
