package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/z0nyx/Akidzuki-CLI/internal/logging"
)

func newLogsCmd() *cobra.Command {
	var (
		lines int
		clear bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show or clear the log file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if clear {
				if err := logging.Clear(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Log cleared")
				return nil
			}
			tail, err := logging.ReadTail(lines)
			if err != nil {
				return err
			}
			if tail != "" {
				fmt.Fprintln(cmd.OutOrStdout(), tail)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "number of lines to show")
	cmd.Flags().BoolVar(&clear, "clear", false, "truncate the log file")
	return cmd
}
