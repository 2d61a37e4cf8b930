package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/clubops/clubsync/internal/engine"
	"github.com/clubops/clubsync/internal/remote"
	"github.com/clubops/clubsync/internal/schema"
	"github.com/clubops/clubsync/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:   "sync [table...]",
	Short: "Run one sync cycle now",
	Long: `Run a single push-then-pull cycle against the backend and exit.

With no arguments every table syncs, in dependency order. Naming
tables restricts the cycle to them:

  clubsync sync players attendance

The command exits non-zero if any table's cycle failed; transient
network failures are safe to retry.`,
	Args: cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		_, cfg := loadConfig()
		requireRemote(cfg)

		for _, table := range args {
			if !schema.KnownTable(table) {
				fmt.Fprintf(os.Stderr, "Error: unknown table %q (tables: %v)\n", table, schema.Tables())
				os.Exit(1)
			}
		}

		st := openStore(cfg)
		defer st.Close()

		gw := remote.NewGateway(nil, cfg.RemoteURL, cfg.Token)
		eng := engine.New(st, gw, log.New(os.Stderr, "[sync] ", log.LstdFlags),
			engine.WithPageSize(cfg.PageSize),
			engine.WithPushBatch(cfg.PushBatch))

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		start := time.Now()
		report := eng.Sync(ctx, args...)
		printReport(report)

		if report.Err() != nil {
			os.Exit(1)
		}
		fmt.Printf("\n%s Sync complete in %v\n", ui.RenderPassIcon(), time.Since(start).Round(time.Millisecond))
	},
}

// printReport renders a cycle report, one line per table.
func printReport(report *engine.Report) {
	for _, tr := range report.Tables {
		if tr.Err != nil {
			fmt.Printf("%s %-12s %v\n", ui.RenderFailIcon(), tr.Table, tr.Err)
			continue
		}

		line := fmt.Sprintf("%s %-12s pushed %s, pulled %s",
			ui.RenderPassIcon(), tr.Table,
			ui.RenderAccent(fmt.Sprintf("%d", tr.Accepted)),
			ui.RenderAccent(fmt.Sprintf("%d", tr.Pulled)))
		if tr.Deleted > 0 {
			line += fmt.Sprintf(", removed %s", ui.RenderAccent(fmt.Sprintf("%d", tr.Deleted)))
		}
		if len(tr.Conflicts) > 0 {
			line += fmt.Sprintf(", %s", ui.RenderWarn(fmt.Sprintf("%d conflicts resolved", len(tr.Conflicts))))
		}
		fmt.Println(line)

		for _, rej := range tr.Rejected {
			fmt.Printf("  %s %s rejected: %s\n", ui.RenderWarnIcon(), rej.ID, rej.Reason)
		}
	}

	if report.Purged > 0 {
		fmt.Printf("%s purged %d settled deletions\n", ui.RenderDim("·"), report.Purged)
	}
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
