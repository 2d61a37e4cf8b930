package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/clubops/clubsync/internal/config"
	"github.com/clubops/clubsync/internal/engine"
	"github.com/clubops/clubsync/internal/remote"
	"github.com/clubops/clubsync/internal/scheduler"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background sync loop",
	Long: `Run sync cycles continuously until interrupted.

The daemon syncs on a timer (sync.interval), immediately after the
backend announces a change over the notification socket, and
immediately after connectivity is regained. Edits made while the
daemon is down are picked up by the first cycle after start.

Editing the config file while the daemon runs adjusts the sync
interval without a restart.`,
	Run: func(cmd *cobra.Command, args []string) {
		loader, cfg := loadConfig()
		requireRemote(cfg)

		logger := log.New(daemonLogWriter(cfg), "[clubsync] ", log.LstdFlags)

		st := openStore(cfg)
		defer st.Close()

		gw := remote.NewGateway(nil, cfg.RemoteURL, cfg.Token)
		eng := engine.New(st, gw, logger,
			engine.WithPageSize(cfg.PageSize),
			engine.WithPushBatch(cfg.PushBatch))
		sched := scheduler.New(eng, st, cfg.SyncInterval, logger)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		loader.Watch(logger, func(next *config.Config) {
			sched.SetInterval(next.SyncInterval)
		})

		if cfg.NotifyURL != "" {
			notifier := remote.NewNotifier(remote.NotifierConfig{
				URL:      cfg.NotifyURL,
				Token:    cfg.Token,
				OnOnline: sched.NotifyOnline,
				OnChange: func(table string) { sched.RequestSync(table) },
				Logger:   logger,
			})
			go notifier.Run(ctx)
		}

		logger.Printf("Daemon started, interval %v, remote %s", cfg.SyncInterval, cfg.RemoteURL)
		fmt.Printf("clubsync daemon running (interval %v)\nPress Ctrl+C to stop...\n", cfg.SyncInterval)

		sched.Run(ctx)

		logger.Printf("Daemon stopped")
		fmt.Println("\nclubsync daemon stopped")
	},
}

// daemonLogWriter returns the daemon's log destination: a size-rotated
// file when log.file is set, stderr otherwise.
func daemonLogWriter(cfg *config.Config) io.Writer {
	if cfg.LogFile == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxFiles,
		Compress:   true,
	}
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
