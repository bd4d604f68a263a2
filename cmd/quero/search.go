package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"quero/internal/service"
)

func newSearchCmd(a *app) *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Show the remembered chunks most similar to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			assistant, err := buildAssistant(a.cfg, a.logger, false)
			if err != nil {
				return err
			}
			results, err := assistant.Search(cmd.Context(), strings.Join(args, " "), k)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "Nothing remembered yet. Add documents with `quero add`.")
				return nil
			}
			for i, r := range results {
				src, _ := r.Metadata[service.MetaSource].(string)
				fmt.Fprintf(out, "%d. [%.3f] %s\n   %s\n", i+1, r.Score, src, r.Text)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "top-k", "k", 0, "number of results (default retrieval.top_k)")
	return cmd
}
