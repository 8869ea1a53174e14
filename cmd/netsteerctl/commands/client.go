package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cococorp/netsteer/internal/statusfile"
)

// errClientNotFound is returned by "client show" when no context reports
// a client with the requested MAC.
var errClientNotFound = errors.New("client not found in any steering context")

func clientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Inspect clients tracked by the steering protocol",
	}

	cmd.AddCommand(clientListCmd())
	cmd.AddCommand(clientShowCmd())

	return cmd
}

// --- client list ---

func clientListCmd() *cobra.Command {
	var contextKey string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every tracked client across all (or one) steering context",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			snap, err := statusfile.Read(statusPath)
			if err != nil {
				return fmt.Errorf("read status file: %w", err)
			}

			rows := flattenClients(snap, contextKey)

			out, err := formatClients(rows, outputFormat)
			if err != nil {
				return fmt.Errorf("format clients: %w", err)
			}

			fmt.Print(out)
			return nil
		},
	}

	cmd.Flags().StringVar(&contextKey, "context", "", "limit to one steering context, by its key (bssid|bridge_ifname)")
	return cmd
}

// --- client show ---

func clientShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <mac>",
		Short: "Show details of one tracked client",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			snap, err := statusfile.Read(statusPath)
			if err != nil {
				return fmt.Errorf("read status file: %w", err)
			}

			mac := strings.ToLower(args[0])
			for _, r := range flattenClients(snap, "") {
				if strings.ToLower(r.MAC) != mac {
					continue
				}
				out, err := formatClient(r, outputFormat)
				if err != nil {
					return fmt.Errorf("format client: %w", err)
				}
				fmt.Print(out)
				return nil
			}

			return fmt.Errorf("%w: %s", errClientNotFound, mac)
		},
	}
}

// flattenClients merges every context's client entries into one slice,
// optionally restricted to a single context key.
func flattenClients(snap statusfile.Snapshot, contextKey string) []clientRow {
	var rows []clientRow
	for _, c := range snap.Contexts {
		if contextKey != "" && c.Key != contextKey {
			continue
		}
		for _, cl := range c.Clients {
			rows = append(rows, clientRow{ContextKey: c.Key, ClientSnapshot: cl})
		}
	}
	return rows
}
