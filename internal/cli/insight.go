package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInsightCmd(g *globals) *cobra.Command {
	var disease, findings string

	cmd := &cobra.Command{
		Use:   "insight",
		Short: "Suggest doctor's comments for a diagnosis",
		Long:  "Ask the configured AI model for suggested doctor's comments. Nothing is saved.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(s *session) error {
				if s.insight == nil {
					return fmt.Errorf("AI insights are not configured; run 'medtrack setup' to add a Gemini API key")
				}
				fmt.Fprintln(cmd.OutOrStdout(), s.insight.Suggest(cmd.Context(), disease, findings))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&disease, "disease", "", "diagnosis")
	cmd.Flags().StringVar(&findings, "findings", "", "clinical findings")
	return cmd
}
