package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clubops/clubsync/internal/config"
	"github.com/clubops/clubsync/internal/ui"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Write a commented starter config file and create the local
database. Refuses to overwrite an existing config.

Edit remote.url and remote.token afterwards to connect this device to
the backend; until then clubsync works in local-only mode.`,
	Run: func(cmd *cobra.Command, args []string) {
		path := configPath
		if path == "" {
			p, err := config.DefaultPath()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			path = p
		}

		if err := config.WriteDefault(path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s Wrote %s\n", ui.RenderPassIcon(), path)

		_, cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()
		fmt.Printf("%s Created local database at %s\n", ui.RenderPassIcon(), cfg.DBPath)

		fmt.Println("\nNext steps:")
		fmt.Printf("  1. Set remote.url and remote.token in %s\n", path)
		fmt.Println("  2. Run 'clubsync sync' to connect this device")
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
