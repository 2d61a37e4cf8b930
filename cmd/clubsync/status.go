package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clubops/clubsync/internal/schema"
	"github.com/clubops/clubsync/internal/store"
	"github.com/clubops/clubsync/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local database and sync state",
	Long: `Show what the local database holds and what still awaits upload.

Per table: record count, pending (dirty) changes, and the pull cursor.
Records the backend rejected are listed with their reasons; they stay
local until edited again.`,
	Run: func(cmd *cobra.Command, args []string) {
		_, cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		ctx := context.Background()

		fmt.Printf("\n%s\n", ui.RenderHeader("Local database"))
		fmt.Printf("  %s\n\n", ui.RenderDim(cfg.DBPath))

		fmt.Printf("  %-12s %8s %9s  %s\n", "table", "records", "pending", "cursor")
		for _, table := range schema.Tables() {
			count, err := st.RecordCount(ctx, table)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", table, err)
				os.Exit(1)
			}
			dirty, err := st.QueryDirty(ctx, table)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", table, err)
				os.Exit(1)
			}
			cursor, err := st.GetCursor(ctx, table)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading %s cursor: %v\n", table, err)
				os.Exit(1)
			}
			if cursor == "" {
				cursor = ui.RenderDim("(never pulled)")
			}

			pending := fmt.Sprintf("%d", len(dirty))
			if len(dirty) > 0 {
				pending = ui.RenderWarn(pending)
			}
			fmt.Printf("  %-12s %8d %9s  %s\n", table, count, pending, cursor)
		}

		total, err := st.PendingCount(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if total == 0 {
			fmt.Printf("\n%s All changes uploaded\n", ui.RenderPassIcon())
		} else {
			fmt.Printf("\n%s %d changes awaiting upload\n", ui.RenderWarnIcon(), total)
		}

		printRejections(ctx, st)
		fmt.Println()
	},
}

// printRejections lists backend-rejected records across all tables.
func printRejections(ctx context.Context, st *store.Store) {
	var rejections []store.Rejection
	for _, table := range schema.Tables() {
		rejected, err := st.QueryRejected(ctx, table)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s rejections: %v\n", table, err)
			os.Exit(1)
		}
		rejections = append(rejections, rejected...)
	}
	if len(rejections) == 0 {
		return
	}

	fmt.Printf("\n%s\n", ui.RenderHeader("Rejected by backend"))
	fmt.Printf("  %s\n", ui.RenderDim("These records stay local until edited again."))
	for _, rej := range rejections {
		fmt.Printf("  %s %s/%s: %s\n", ui.RenderFailIcon(), rej.Table, rej.ID, rej.Reason)
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
