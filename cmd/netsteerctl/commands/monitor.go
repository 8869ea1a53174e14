package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cococorp/netsteer/internal/statusfile"
)

// monitorPollInterval is how often the status file is reread while
// watching for client state changes.
const monitorPollInterval = 1 * time.Second

func monitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch client state transitions until interrupted",
		Long:  "Polls netsteerd's status file and prints client state transitions until interrupted (Ctrl+C).",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return watchStatusFile(ctx, statusPath)
		},
	}

	return cmd
}

// watchStatusFile polls path every monitorPollInterval, printing one line
// per client whose state within a context changed since the previous poll.
func watchStatusFile(ctx context.Context, path string) error {
	prev := make(map[string]string) // "context|mac" -> state

	ticker := time.NewTicker(monitorPollInterval)
	defer ticker.Stop()

	for {
		snap, err := statusfile.Read(path)
		if err == nil {
			prev = reportTransitions(snap, prev)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// reportTransitions prints a line for every client whose state changed
// relative to prev, and returns the updated state map.
func reportTransitions(snap statusfile.Snapshot, prev map[string]string) map[string]string {
	next := make(map[string]string, len(prev))

	for _, row := range flattenClients(snap, "") {
		key := row.ContextKey + "|" + row.MAC
		next[key] = row.State

		if old, seen := prev[key]; seen && old != row.State {
			fmt.Printf("[%s] %s  context=%s  %s -> %s\n",
				snap.GeneratedAt.Format(time.RFC3339), row.MAC, row.ContextKey, old, row.State)
		}
	}

	return next
}
