package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <path> [path...]",
		Short: "Remember .txt and .md documents (files, directories or globs)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			assistant, err := buildAssistant(a.cfg, a.logger, false)
			if err != nil {
				return err
			}
			report, err := assistant.Ingest(cmd.Context(), args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Remembered %d chunks from %d documents.\n", report.Chunks, len(report.Documents))
			for _, d := range report.Documents {
				fmt.Fprintf(out, "  - %s\n", d)
			}
			if report.Summary != "" {
				fmt.Fprintf(out, "\n%s\n", report.Summary)
			}
			return nil
		},
	}
}
