package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "GAMECODEBASE"
	defaultHTTPAddress   = "127.0.0.1:8501"
	defaultCatalogPath   = "GameCodeBase.json"
	defaultDatabasePath  = "gamecodebase-audit.db"
	defaultGitBinary     = "git"
	defaultGitRemote     = "origin"
	defaultGitBranch     = "main"
	defaultLogLevel      = "info"
	defaultLogMaxSizeMB  = 50
	defaultLogMaxBackups = 3
	defaultLogMaxAgeDays = 14
)

// AppConfig captures runtime configuration for the admin tool.
type AppConfig struct {
	HTTPAddress     string
	CatalogPath     string
	CatalogAutoPush bool
	GitBinary       string
	GitRemote       string
	GitBranch       string
	GitWorkDir      string
	DatabasePath    string
	WatchEnabled    bool
	LogLevel        string
	LogFile         string
	LogMaxSizeMB    int
	LogMaxBackups   int
	LogMaxAgeDays   int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("catalog.path", defaultCatalogPath)
	configViper.SetDefault("catalog.auto_push", true)
	configViper.SetDefault("git.binary", defaultGitBinary)
	configViper.SetDefault("git.remote", defaultGitRemote)
	configViper.SetDefault("git.branch", defaultGitBranch)
	configViper.SetDefault("git.workdir", "")
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("watch.enabled", true)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.file", "")
	configViper.SetDefault("log.max_size_mb", defaultLogMaxSizeMB)
	configViper.SetDefault("log.max_backups", defaultLogMaxBackups)
	configViper.SetDefault("log.max_age_days", defaultLogMaxAgeDays)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:     strings.TrimSpace(configViper.GetString("http.address")),
		CatalogPath:     strings.TrimSpace(configViper.GetString("catalog.path")),
		CatalogAutoPush: configViper.GetBool("catalog.auto_push"),
		GitBinary:       strings.TrimSpace(configViper.GetString("git.binary")),
		GitRemote:       strings.TrimSpace(configViper.GetString("git.remote")),
		GitBranch:       strings.TrimSpace(configViper.GetString("git.branch")),
		GitWorkDir:      strings.TrimSpace(configViper.GetString("git.workdir")),
		DatabasePath:    strings.TrimSpace(configViper.GetString("database.path")),
		WatchEnabled:    configViper.GetBool("watch.enabled"),
		LogLevel:        configViper.GetString("log.level"),
		LogFile:         strings.TrimSpace(configViper.GetString("log.file")),
		LogMaxSizeMB:    configViper.GetInt("log.max_size_mb"),
		LogMaxBackups:   configViper.GetInt("log.max_backups"),
		LogMaxAgeDays:   configViper.GetInt("log.max_age_days"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if c.CatalogPath == "" {
		return fmt.Errorf("catalog.path is required")
	}
	if c.HTTPAddress == "" {
		return fmt.Errorf("http.address is required")
	}
	if c.GitBinary == "" {
		return fmt.Errorf("git.binary is required")
	}
	if c.GitRemote == "" || c.GitBranch == "" {
		return fmt.Errorf("git.remote and git.branch are required")
	}
	if c.LogFile != "" && c.LogMaxSizeMB <= 0 {
		return fmt.Errorf("log.max_size_mb must be positive when log.file is set")
	}
	return nil
}
