package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/njoerd114/medtrack/internal/config"
	"github.com/njoerd114/medtrack/internal/setup"
)

func newSetupCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive configuration wizard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := g.newLogger(cmd.ErrOrStderr(), slog.LevelWarn)
			if err != nil {
				return err
			}
			path := g.configPath
			if path == "" {
				if path, err = config.DefaultPath(); err != nil {
					return err
				}
			}
			wiz := setup.NewWizard(cmd.InOrStdin(), cmd.OutOrStdout(), path, nil, logger)
			return wiz.Run(cmd.Context())
		},
	}
}
