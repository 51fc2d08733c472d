package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStateCmd() *cobra.Command {
	var catalogs []string
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show the download state of every catalog record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			records, err := a.LoadCatalog(catalogs)
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STATE\tNAME\tPAGE")
			for _, rec := range records {
				state := "no_audio"
				if rec.HasAudio() {
					state = string(a.Downloads().State(rec))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", state, rec.Name, rec.Page)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringSliceVar(&catalogs, "catalog", nil, "catalog table files to read (repeatable)")
	return cmd
}
