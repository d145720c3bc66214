package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const statusPingTimeout = 5 * time.Second

func newStatusCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show config, local database, backend and sync state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(s *session) error {
				return printStatus(cmd, s)
			})
		},
	}
}

func printStatus(cmd *cobra.Command, s *session) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w, "MedTrack Status")
	fmt.Fprintln(w, "───────────────")

	if _, err := os.Stat(s.cfgPath); err == nil {
		fmt.Fprintf(w, "  Config:    %s ✓\n", s.cfgPath)
	} else {
		fmt.Fprintf(w, "  Config:    not found (%s), using defaults\n", s.cfgPath)
	}

	if s.store == nil {
		fmt.Fprintf(w, "  Local DB:  unavailable (%s), working in memory\n", s.dbPath)
	} else {
		size := "-"
		if info, err := os.Stat(s.dbPath); err == nil {
			size = humanSize(info.Size())
		}
		last := "never"
		if t, err := s.store.LastWrite(cmd.Context()); err == nil && !t.IsZero() {
			last = t.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "  Local DB:  %s (%s, last write %s)\n", s.dbPath, size, last)
	}

	if s.monitor.Online() {
		fmt.Fprintln(w, "  Network:   online")
	} else {
		fmt.Fprintln(w, "  Network:   offline")
	}

	if s.remote == nil {
		fmt.Fprintln(w, "  Backend:   not configured (local only)")
	} else {
		ctx, cancel := context.WithTimeout(cmd.Context(), statusPingTimeout)
		defer cancel()
		if err := s.remote.Ping(ctx); err != nil {
			fmt.Fprintf(w, "  Backend:   %s ✗ (%v)\n", s.remote.BaseURL(), err)
		} else {
			fmt.Fprintf(w, "  Backend:   %s ✓\n", s.remote.BaseURL())
		}
	}

	st := s.orch.Status()
	fmt.Fprintf(w, "  Loaded:    from %s store\n", s.source)
	fmt.Fprintf(w, "  Synced:    %t\n", st.RemoteSynced)

	if s.insight != nil {
		fmt.Fprintf(w, "  AI:        enabled (%s)\n", s.cfg.Gemini.Model)
	} else {
		fmt.Fprintln(w, "  AI:        disabled")
	}

	snap := s.records.Snapshot()
	fmt.Fprintf(w, "  Records:   %d hospital(s), %d visit(s)\n", len(snap.Hospitals), len(snap.Visits))
	return nil
}

// humanSize returns a human-readable file size string.
func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
