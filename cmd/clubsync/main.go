// clubsync keeps a club's local operations database in step with the
// team backend: edits made offline are uploaded when connectivity
// allows, and remote changes are merged down with last-writer-wins
// conflict resolution.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clubops/clubsync/internal/config"
	"github.com/clubops/clubsync/internal/store"
	"github.com/clubops/clubsync/internal/track"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "clubsync",
	Short: "Offline-first sync for the club operations dashboard",
	Long: `clubsync manages the local database behind the club operations
dashboard (teams, players, events, attendance) and keeps it in sync
with the team backend.

All edits land locally first and work fully offline. A background
daemon (or a one-shot 'clubsync sync') uploads pending changes and
pulls down what other devices did, resolving conflicts by newest
timestamp.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: the per-user config.yaml)")
}

// loadConfig resolves the active configuration, honoring --config.
func loadConfig() (*config.Loader, *config.Config) {
	loader, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := loader.Config()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return loader, cfg
}

// openStore opens the local database and ensures its schema exists.
func openStore(cfg *config.Config) *store.Store {
	st, err := store.Open(cfg.DBPath, track.New(nil))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	if err := st.InitSchema(); err != nil {
		st.Close()
		fmt.Fprintf(os.Stderr, "Error initializing schema: %v\n", err)
		os.Exit(1)
	}
	return st
}

// requireRemote refuses to run sync commands in local-only mode.
func requireRemote(cfg *config.Config) {
	if cfg.RemoteURL == "" {
		fmt.Fprintf(os.Stderr, "Error: no remote configured; set remote.url in %s\n", configDescription())
		os.Exit(1)
	}
}

func configDescription() string {
	if configPath != "" {
		return configPath
	}
	if p, err := config.DefaultPath(); err == nil {
		return p
	}
	return "the config file"
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
