// Package commands implements the netsteerctl CLI commands.
package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/cococorp/netsteer/internal/statusfile"
)

const (
	formatJSON  = "json"
	formatTable = "table"
	valueNA     = "N/A"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

// clientRow pairs a client entry with the context it was found in, for
// flattened "client list" output across every configured BSSID.
type clientRow struct {
	ContextKey string
	statusfile.ClientSnapshot
}

// formatClients renders a slice of clients in the requested format.
func formatClients(rows []clientRow, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatClientsJSON(rows)
	case formatTable:
		return formatClientsTable(rows), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// formatClient renders a single client's detail in the requested format.
func formatClient(row clientRow, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatClientJSON(row)
	case formatTable:
		return formatClientDetail(row), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// formatContexts renders the contexts list (without per-client detail) in
// the requested format.
func formatContexts(snap statusfile.Snapshot, format string) (string, error) {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(snap.Contexts, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal contexts to JSON: %w", err)
		}
		return string(data), nil
	case formatTable:
		return formatContextsTable(snap), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// --- Table formatters ---

func formatContextsTable(snap statusfile.Snapshot) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tBRIDGE\tBSSID\tMODE\tINERT\tCLIENTS")

	for _, c := range snap.Contexts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%d\n",
			c.Key, c.BridgeIfname, c.LocalBSSID, c.Mode, c.Inert, len(c.Clients))
	}

	_ = w.Flush()
	return buf.String()
}

func formatClientsTable(rows []clientRow) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MAC\tCONTEXT\tSTATE\tSCORE\tASSOCIATED\tAGE\tREMOTE-BSSID\tCLOSE-BSSID")

	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\t%s\t%s\n",
			r.MAC, r.ContextKey, r.State, scoreString(r.LocalScore), r.Associated,
			associationAge(r.Associated, r.AssociationTime),
			naIfZero(r.RemoteBSSID), naIfZero(r.CloseBSSID))
	}

	_ = w.Flush()
	return buf.String()
}

func formatClientDetail(r clientRow) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "MAC:\t%s\n", r.MAC)
	fmt.Fprintf(w, "Context:\t%s\n", r.ContextKey)
	fmt.Fprintf(w, "State:\t%s\n", r.State)
	fmt.Fprintf(w, "Local Score:\t%s\n", scoreString(r.LocalScore))
	fmt.Fprintf(w, "Associated:\t%t\n", r.Associated)
	fmt.Fprintf(w, "Remote BSSID:\t%s\n", naIfZero(r.RemoteBSSID))
	fmt.Fprintf(w, "Close BSSID:\t%s\n", naIfZero(r.CloseBSSID))
	fmt.Fprintf(w, "Remote Channel:\t%d\n", r.RemoteChannel)
	fmt.Fprintf(w, "Association Age:\t%s\n", associationAge(r.Associated, r.AssociationTime))

	_ = w.Flush()
	return buf.String()
}

func scoreString(score uint16) string {
	if score == 0xFFFF {
		return "lost"
	}
	return fmt.Sprintf("%d", score)
}

// associationAge renders how long ago a client associated, in the same
// "3 minutes ago" style humanize uses elsewhere for durations. Unassociated
// clients have no meaningful association time.
func associationAge(associated bool, unixNano int64) string {
	if !associated || unixNano == 0 {
		return valueNA
	}
	return humanize.Time(time.Unix(0, unixNano))
}

func naIfZero(mac string) string {
	if mac == "" || mac == "00:00:00:00:00:00" {
		return valueNA
	}
	return mac
}

// --- JSON formatters ---

func formatClientsJSON(rows []clientRow) (string, error) {
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal clients to JSON: %w", err)
	}
	return string(data), nil
}

func formatClientJSON(row clientRow) (string, error) {
	data, err := json.MarshalIndent(row, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal client to JSON: %w", err)
	}
	return string(data), nil
}
