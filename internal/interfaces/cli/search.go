package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCmd(a *app) *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Show the course passages closest to a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tk, err := a.services()
			if err != nil {
				return err
			}
			if k <= 0 {
				k = tk.Retriever.DefaultTopK()
			}
			results := tk.Retriever.Retrieve(cmd.Context(), args[0], k)
			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No matching passages.")
				return nil
			}
			for i, r := range results {
				fmt.Fprintf(out, "%d. %s #%d (distance %.4f)\n", i+1, r.Metadata.SourceName, r.Metadata.ChunkIndex, r.Distance)
				fmt.Fprintf(out, "   %s\n", strings.ReplaceAll(strings.TrimSpace(r.Text), "\n", "\n   "))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 0, "number of passages (default from config)")
	return cmd
}
