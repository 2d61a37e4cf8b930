// Package config loads clubsync settings from a YAML file, environment
// variables and built-in defaults, in that order of increasing
// precedence for the environment.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Defaults used when neither the config file nor the environment sets a
// value.
const (
	DefaultSyncInterval = 30 * time.Second
	DefaultPageSize     = 100
	DefaultPushBatch    = 50
	DefaultLogMaxSizeMB = 10
	DefaultLogMaxFiles  = 3
)

// Config holds the resolved settings for one clubsync instance.
type Config struct {
	// DBPath is the local SQLite database file.
	DBPath string

	// RemoteURL is the base URL of the sync backend. Empty disables
	// remote sync (local-only mode).
	RemoteURL string

	// Token is the bearer token presented to the backend.
	Token string

	// NotifyURL is the websocket endpoint for server change pings.
	// Empty disables the notifier; the periodic timer still runs.
	NotifyURL string

	// SyncInterval is the periodic cycle spacing for the daemon.
	SyncInterval time.Duration

	// PageSize caps how many changes one pull request fetches.
	PageSize int

	// PushBatch caps how many records one push request uploads.
	PushBatch int

	// LogFile is where the daemon writes its log. Empty logs to
	// stderr.
	LogFile string

	// LogMaxSizeMB and LogMaxFiles bound the daemon log's rotation.
	LogMaxSizeMB int
	LogMaxFiles  int
}

// Loader wraps the viper instance behind a Config so callers can watch
// the backing file for changes.
type Loader struct {
	v    *viper.Viper
	path string
}

// DefaultPath returns the per-user config file location,
// ~/.config/clubsync/config.yaml (or the OS equivalent).
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config dir: %w", err)
	}
	return filepath.Join(dir, "clubsync", "config.yaml"), nil
}

// defaultDBPath returns the per-user database location. Falls back to a
// relative path when the home directory cannot be resolved.
func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "clubsync.db"
	}
	return filepath.Join(dir, "clubsync", "clubsync.db")
}

// Load reads the config file at path. An empty path falls back to
// DefaultPath; a missing file is not an error, the defaults and
// environment apply. Environment variables use the CLUBSYNC_ prefix
// with dots replaced by underscores, e.g. CLUBSYNC_REMOTE_URL.
func Load(path string) (*Loader, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	v.SetConfigFile(path)

	v.SetEnvPrefix("CLUBSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("db", defaultDBPath())
	v.SetDefault("remote.url", "")
	v.SetDefault("remote.token", "")
	v.SetDefault("remote.notify-url", "")
	v.SetDefault("sync.interval", DefaultSyncInterval.String())
	v.SetDefault("sync.page-size", DefaultPageSize)
	v.SetDefault("sync.push-batch", DefaultPushBatch)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max-size-mb", DefaultLogMaxSizeMB)
	v.SetDefault("log.max-files", DefaultLogMaxFiles)

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	return &Loader{v: v, path: path}, nil
}

// Config resolves the loader's current state into a Config.
func (l *Loader) Config() (*Config, error) {
	cfg := &Config{
		DBPath:       l.v.GetString("db"),
		RemoteURL:    l.v.GetString("remote.url"),
		Token:        l.v.GetString("remote.token"),
		NotifyURL:    l.v.GetString("remote.notify-url"),
		SyncInterval: l.v.GetDuration("sync.interval"),
		PageSize:     l.v.GetInt("sync.page-size"),
		PushBatch:    l.v.GetInt("sync.push-batch"),
		LogFile:      l.v.GetString("log.file"),
		LogMaxSizeMB: l.v.GetInt("log.max-size-mb"),
		LogMaxFiles:  l.v.GetInt("log.max-files"),
	}

	if cfg.DBPath == "" {
		return nil, fmt.Errorf("config: db path must not be empty")
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = DefaultSyncInterval
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.PushBatch <= 0 {
		cfg.PushBatch = DefaultPushBatch
	}
	return cfg, nil
}

// Path returns the config file location the loader reads from.
func (l *Loader) Path() string {
	return l.path
}

// Watch reloads the config whenever the backing file changes and hands
// the result to onReload. A reload that fails validation is logged and
// dropped; the previous settings stay in effect. Watch returns
// immediately; callbacks arrive on viper's watcher goroutine.
func (l *Loader) Watch(logger *log.Logger, onReload func(*Config)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		cfg, err := l.Config()
		if err != nil {
			logger.Printf("Ignoring config reload from %s: %v", e.Name, err)
			return
		}
		logger.Printf("Config reloaded from %s", e.Name)
		onReload(cfg)
	})
	l.v.WatchConfig()
}

// fileConfig mirrors the YAML layout of the config file.
type fileConfig struct {
	DB     string `yaml:"db"`
	Remote struct {
		URL       string `yaml:"url"`
		Token     string `yaml:"token"`
		NotifyURL string `yaml:"notify-url"`
	} `yaml:"remote"`
	Sync struct {
		Interval  string `yaml:"interval"`
		PageSize  int    `yaml:"page-size"`
		PushBatch int    `yaml:"push-batch"`
	} `yaml:"sync"`
	Log struct {
		File      string `yaml:"file"`
		MaxSizeMB int    `yaml:"max-size-mb"`
		MaxFiles  int    `yaml:"max-files"`
	} `yaml:"log"`
}

// WriteDefault writes a starter config file at path. Fails if the file
// already exists so a populated config is never clobbered.
func WriteDefault(path string) error {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	var fc fileConfig
	fc.DB = defaultDBPath()
	fc.Remote.URL = "https://sync.example.com"
	fc.Remote.Token = ""
	fc.Remote.NotifyURL = ""
	fc.Sync.Interval = DefaultSyncInterval.String()
	fc.Sync.PageSize = DefaultPageSize
	fc.Sync.PushBatch = DefaultPushBatch
	fc.Log.File = ""
	fc.Log.MaxSizeMB = DefaultLogMaxSizeMB
	fc.Log.MaxFiles = DefaultLogMaxFiles

	out, err := yaml.Marshal(&fc)
	if err != nil {
		return fmt.Errorf("failed to render default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
