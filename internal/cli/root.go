// Package cli defines the akidzuki command line.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/z0nyx/Akidzuki-CLI/internal/catalog"
	"github.com/z0nyx/Akidzuki-CLI/internal/config"
	"github.com/z0nyx/Akidzuki-CLI/internal/database"
	"github.com/z0nyx/Akidzuki-CLI/internal/logging"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// NewRootCmd builds the command tree. Running it without a subcommand opens
// the interactive menu.
func NewRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "akidzuki",
		Short: "SSH connection manager with detachable sessions",
		Long: `akidzuki keeps a catalog of SSH profiles and opens interactive shells
from a selection menu. Press Ctrl+B inside a shell to return to the menu
without disconnecting; selecting the same profile again resumes it.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(verbose)
		},
		RunE: runInteractive,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at DEBUG level")

	root.AddCommand(
		newListCmd(),
		newAddCmd(),
		newEditCmd(),
		newRemoveCmd(),
		newFavoriteCmd(),
		newPasswdCmd(),
		newTestCmd(),
		newConnectCmd(),
		newImportCmd(),
		newExportCmd(),
		newLogsCmd(),
	)
	return root
}

func setup(verbose bool) error {
	if err := config.Load(); err != nil {
		return err
	}
	if verbose {
		config.Cfg.LogLevel = "DEBUG"
	}
	logging.Init()
	if err := database.Init(); err != nil {
		return err
	}
	return nil
}

func shutdown() {
	database.Close()
	logging.Close()
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context) int {
	defer shutdown()
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func openCatalog() *catalog.Catalog {
	return catalog.New(database.DB)
}

func getProfile(name string) (*catalog.Catalog, *database.Profile, error) {
	cat := openCatalog()
	p, err := cat.Get(name)
	if err != nil {
		return nil, nil, err
	}
	return cat, p, nil
}
