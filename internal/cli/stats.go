package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/njoerd114/medtrack/internal/model"
)

// stats are the dashboard counters.
type stats struct {
	Hospitals      int `json:"hospitals"`
	Visits         int `json:"visits"`
	UniquePatients int `json:"uniquePatients"`
}

func computeStats(snap model.Snapshot, q model.VisitQuery) stats {
	visits := q.Apply(snap)
	return stats{
		Hospitals:      len(snap.Hospitals),
		Visits:         len(visits),
		UniquePatients: model.UniquePatientCount(visits),
	}
}

func newStatsCmd(g *globals) *cobra.Command {
	var qf queryFlags

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show hospital, visit and patient counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := qf.query()
			if err != nil {
				return err
			}
			return g.run(cmd, func(s *session) error {
				st := computeStats(s.records.Snapshot(), q)
				if g.isJSON() {
					return printJSON(cmd.OutOrStdout(), st)
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Hospitals:        %d\n", st.Hospitals)
				fmt.Fprintf(w, "Visits:           %d\n", st.Visits)
				fmt.Fprintf(w, "Unique patients:  %d\n", st.UniquePatients)
				return nil
			})
		},
	}
	qf.register(cmd.Flags(), false)
	return cmd
}
