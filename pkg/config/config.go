// Package config handles loading the repoman configuration file and the
// locations of the directories repoman owns on disk.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/jwbla/repoman/pkg/errors"
	"github.com/jwbla/repoman/pkg/logger"
)

// DefaultSyncIntervalSeconds is the process-wide sync interval applied to
// repositories that carry no per-repo interval, and the fallback sleep for
// the agent when no repository is pending.
const DefaultSyncIntervalSeconds = 3600

// Config holds the resolved repoman configuration.
type Config struct {
	// VaultDir holds vault.json and the per-repository metadata directories.
	VaultDir string `mapstructure:"vault_dir"`
	// PristinesDir holds one bare mirror per repository.
	PristinesDir string `mapstructure:"pristines_dir"`
	// ClonesDir holds the disposable working copies.
	ClonesDir string `mapstructure:"clones_dir"`
	// LogsDir holds the agent log and PID files.
	LogsDir string `mapstructure:"logs_dir"`
	// DefaultSyncInterval is the fleet default, in seconds.
	DefaultSyncInterval uint64 `mapstructure:"default_sync_interval"`
	// AgentPollInterval is the agent's fallback sleep, in seconds, when no
	// repository is pending.
	AgentPollInterval uint64 `mapstructure:"agent_poll_interval"`
}

// Load reads the configuration from $XDG_CONFIG_HOME/repoman/config.yaml,
// falling back to defaults when the file is absent. Paths support a leading
// "~/" and environment variable expansion.
func Load() (*Config, error) {
	configDir := filepath.Join(xdg.ConfigHome, "repoman")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) {
			return nil, errors.NewStorageError("failed to read config file", err)
		}
		logger.Debugf("config: no config file in %s, using defaults", configDir)
	} else {
		logger.Debugf("config: loaded from %s", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.NewStorageError("failed to parse config file", err)
	}

	cfg.VaultDir = expandPath(cfg.VaultDir)
	cfg.PristinesDir = expandPath(cfg.PristinesDir)
	cfg.ClonesDir = expandPath(cfg.ClonesDir)
	cfg.LogsDir = expandPath(cfg.LogsDir)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	dataDir := filepath.Join(xdg.DataHome, "repoman")

	v.SetDefault("vault_dir", filepath.Join(dataDir, "vault"))
	v.SetDefault("pristines_dir", filepath.Join(dataDir, "pristines"))
	v.SetDefault("clones_dir", filepath.Join(dataDir, "clones"))
	v.SetDefault("logs_dir", filepath.Join(dataDir, "logs"))
	v.SetDefault("default_sync_interval", DefaultSyncIntervalSeconds)
	v.SetDefault("agent_poll_interval", DefaultSyncIntervalSeconds)
}

func (c *Config) validate() error {
	if c.VaultDir == "" {
		return errors.NewInvalidInputError("vault_dir cannot be empty", nil)
	}
	if c.PristinesDir == "" {
		return errors.NewInvalidInputError("pristines_dir cannot be empty", nil)
	}
	if c.ClonesDir == "" {
		return errors.NewInvalidInputError("clones_dir cannot be empty", nil)
	}
	if c.LogsDir == "" {
		return errors.NewInvalidInputError("logs_dir cannot be empty", nil)
	}
	if c.DefaultSyncInterval == 0 {
		c.DefaultSyncInterval = DefaultSyncIntervalSeconds
	}
	if c.AgentPollInterval == 0 {
		c.AgentPollInterval = DefaultSyncIntervalSeconds
	}
	return nil
}

// EnsureDirectories creates the directories repoman writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.VaultDir, c.PristinesDir, c.ClonesDir, c.LogsDir} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return errors.NewStorageError(fmt.Sprintf("failed to create directory %s", dir), err)
		}
	}
	return nil
}

// PristinePath returns the mirror path for a canonical repository name.
func (c *Config) PristinePath(name string) string {
	return filepath.Join(c.PristinesDir, name)
}

// ClonePath returns the working-copy path for a full clone directory name.
func (c *Config) ClonePath(dirName string) string {
	return filepath.Join(c.ClonesDir, dirName)
}

// expandPath expands a leading "~/" and any environment variables in path.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path == "~" {
		return xdg.Home
	}
	if strings.HasPrefix(path, "~/") {
		path = filepath.Join(xdg.Home, path[2:])
	}
	return os.ExpandEnv(path)
}
