package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newDiscoverCmd(a *app) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find coursebot servers advertising on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.discover == nil {
				return errors.New("discovery not configured")
			}
			services, err := a.discover(cmd.Context(), timeout)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(services) == 0 {
				fmt.Fprintln(out, "No servers found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "INSTANCE\tURL\tMCP")
			for _, s := range services {
				fmt.Fprintf(w, "%s\t%s%s\t%s\n", s.Instance, s.BaseURL(), s.APIPath, s.MCPPath)
			}
			return w.Flush()
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "how long to listen for announcements")
	return cmd
}
