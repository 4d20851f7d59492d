package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"MoviePageViews/internal/app"
	"MoviePageViews/internal/infrastructure/output"
)

func newHistoryCommand(configFlag *string, flags *runFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "history <run-id>",
		Short: "Print an archived report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *configFlag, *flags)
			if err != nil {
				return err
			}

			r, err := app.ArchivedReport(cmd.Context(), cfg, args[0])
			if err != nil {
				return fmt.Errorf("load run %s: %w", args[0], err)
			}

			return output.NewWriterSink(cmd.OutOrStdout(), cfg.Output.Format).Emit(cmd.Context(), r)
		},
	}
}
