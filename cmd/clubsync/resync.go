package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clubops/clubsync/internal/schema"
	"github.com/clubops/clubsync/internal/ui"
)

var resyncCmd = &cobra.Command{
	Use:   "resync [table...]",
	Short: "Reset pull cursors to force a full re-download",
	Long: `Reset the pull cursors so the next cycle re-downloads the full
remote dataset instead of just what changed.

Local records and pending uploads are untouched: re-pulled remote
records merge with the usual newest-wins rule, so a resync is safe to
run at any time. Use it when local state is suspected to have drifted
from the backend.

With no arguments every table's cursor resets.`,
	Args: cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		_, cfg := loadConfig()

		tables := args
		if len(tables) == 0 {
			tables = schema.Tables()
		}
		for _, table := range tables {
			if !schema.KnownTable(table) {
				fmt.Fprintf(os.Stderr, "Error: unknown table %q (tables: %v)\n", table, schema.Tables())
				os.Exit(1)
			}
		}

		st := openStore(cfg)
		defer st.Close()

		if err := st.ResetCursors(context.Background(), tables...); err != nil {
			fmt.Fprintf(os.Stderr, "Error resetting cursors: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Cursors reset for %v\n", ui.RenderPassIcon(), tables)
		fmt.Println("The next sync cycle will re-download these tables in full.")
	},
}

func init() {
	rootCmd.AddCommand(resyncCmd)
}
