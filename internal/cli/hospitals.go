package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/njoerd114/medtrack/internal/records"
)

func newHospitalsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hospitals",
		Short: "List or add hospitals",
	}
	cmd.AddCommand(newHospitalsListCmd(g), newHospitalsAddCmd(g))
	return cmd
}

func newHospitalsListCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List hospitals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(s *session) error {
				hospitals := s.records.Snapshot().Hospitals
				if g.isJSON() {
					return printJSON(cmd.OutOrStdout(), hospitals)
				}
				return printHospitalTable(cmd.OutOrStdout(), hospitals)
			})
		},
	}
}

func newHospitalsAddCmd(g *globals) *cobra.Command {
	var draft records.HospitalDraft

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a hospital",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(s *session) error {
				h, err := s.handlers.AddHospital(draft)
				if err != nil {
					return err
				}
				if g.isJSON() {
					return printJSON(cmd.OutOrStdout(), h)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added hospital %s (%s)\n", h.Name, h.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&draft.Name, "name", "", "hospital name (required)")
	cmd.Flags().StringVar(&draft.Location, "location", "", "hospital location (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("location")

	return cmd
}
