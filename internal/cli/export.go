package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/njoerd114/medtrack/internal/export"
)

func newExportCmd(g *globals) *cobra.Command {
	var (
		qf  queryFlags
		out string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export visits as CSV",
		Long: "Export visits as CSV, in the same order as 'visits list'. Writes to stdout " +
			"unless --out names a file or a directory; a directory receives medtrack-export-<date>.csv.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := qf.query()
			if err != nil {
				return err
			}
			return g.run(cmd, func(s *session) error {
				snap := s.records.Snapshot()
				visits := q.Apply(snap)

				if out == "" {
					return export.WriteCSV(cmd.OutOrStdout(), snap, visits)
				}

				path := out
				if info, err := os.Stat(out); err == nil && info.IsDir() {
					path = filepath.Join(out, export.FileName(time.Now().Format("2006-01-02")))
				}
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("creating export file: %w", err)
				}
				if err := export.WriteCSV(f, snap, visits); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("closing export file: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d visit(s) to %s\n", len(visits), path)
				return nil
			})
		},
	}

	qf.register(cmd.Flags(), true)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file or directory (default: stdout)")
	return cmd
}
