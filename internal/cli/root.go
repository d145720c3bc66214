// Package cli defines the cobra command tree for medtrack.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/njoerd114/medtrack/internal/connectivity"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// globals holds the persistent flags and, in watch mode, the session shared
// by every command line read from stdin.
type globals struct {
	configPath string
	dbPath     string
	verbose    bool
	offline    bool
	logFormat  string
	format     string

	// interfaces lists network interfaces for the connectivity check.
	interfaces connectivity.InterfaceLister

	// active is set while watch mode runs; commands reuse it instead of
	// opening their own session.
	active *session
}

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&globals{interfaces: connectivity.SystemInterfaces})
}

func newRootCmd(g *globals) *cobra.Command {
	root := &cobra.Command{
		Use:   "medtrack",
		Short: "Track patient visits across hospitals",
		Long: "MedTrack keeps a list of hospitals and patient visits on this machine and " +
			"mirrors the whole record set to a MedTrack backend whenever the machine is online.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default: ~/.config/medtrack/config.yaml)")
	pf.StringVar(&g.dbPath, "db", "", "local SQLite database (default: ~/.local/share/medtrack/medtrack.db)")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVar(&g.offline, "offline", false, "treat the machine as offline; changes stay local")
	pf.StringVar(&g.logFormat, "log-format", "text", "log format on stderr (text|json)")
	pf.StringVar(&g.format, "format", "text", "output format (text|json)")

	root.AddCommand(
		newHospitalsCmd(g),
		newVisitsCmd(g),
		newExportCmd(g),
		newInsightCmd(g),
		newStatsCmd(g),
		newStatusCmd(g),
		newWatchCmd(g),
		newServeCmd(g),
		newSetupCmd(g),
		newVersionCmd(),
	)

	return root
}

func (g *globals) isJSON() bool {
	return g.format == "json"
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "medtrack", Version)
		},
	}
}
