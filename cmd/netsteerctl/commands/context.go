package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cococorp/netsteer/internal/statusfile"
)

func contextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Inspect configured steering contexts",
	}

	cmd.AddCommand(contextListCmd())

	return cmd
}

func contextListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every steering context reported by the daemon",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			snap, err := statusfile.Read(statusPath)
			if err != nil {
				return fmt.Errorf("read status file: %w", err)
			}

			out, err := formatContexts(snap, outputFormat)
			if err != nil {
				return fmt.Errorf("format contexts: %w", err)
			}

			fmt.Print(out)
			return nil
		},
	}
}
