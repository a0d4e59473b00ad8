package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "logistria/internal/etl/sources"
)

var (
	// Global flag values
	verbose   bool
	useMemory bool
)

var rootCmd = &cobra.Command{
	Use:   "logistria",
	Short: "Bulk record importer and operations backend for the logistics console",
	Long: `logistria loads CSV and Excel files into the logistics document store,
one atomic batch per file, and serves the operations console and storefront.

Settings come from the environment (or a .env file): MONGO_URI,
IDENTITY_JWT_SECRET, STATE_DB_PATH, REDIS_ADDRESS, IMPORT_INBOX_DIR, ...`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&useMemory, "memory", false, "Use an in-process document store instead of MongoDB (development only)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(targetsCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(usersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
