package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/z0nyx/Akidzuki-CLI/internal/catalog"
)

func resolveFormat(format, path string) (string, error) {
	if format == "" {
		return catalog.FormatFromPath(path), nil
	}
	switch format {
	case catalog.FormatJSON, catalog.FormatYAML, catalog.FormatSSHConfig:
		return format, nil
	default:
		return "", fmt.Errorf("unknown format %q (want json, yaml or ssh_config)", format)
	}
}

func newImportCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import profiles from JSON, YAML or ssh_config; '-' reads stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			f, err := resolveFormat(format, path)
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			if path != "-" {
				file, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("open %s: %w", path, err)
				}
				defer file.Close()
				r = file
			}

			imported, skipped, err := openCatalog().Import(r, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d profiles, skipped %d existing\n", imported, skipped)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "json, yaml or ssh_config (default: from the file extension)")
	return cmd
}

func newExportCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Export profiles to JSON, YAML or ssh_config; '-' writes stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			f, err := resolveFormat(format, path)
			if err != nil {
				return err
			}

			if path == "-" {
				return openCatalog().Export(cmd.OutOrStdout(), f)
			}
			file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
			if err != nil {
				return fmt.Errorf("create %s: %w", path, err)
			}
			if err := openCatalog().Export(file, f); err != nil {
				file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported profiles to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "json, yaml or ssh_config (default: from the file extension)")
	return cmd
}
