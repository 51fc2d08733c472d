package cmd

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Re-run every harvest on an interval",
		Long: `Harvests every configured source immediately and then once per
schedule.interval_minutes, downloading afterwards when schedule.download is
set. The ops server runs alongside when metrics.listen_addr is configured.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error { return a.Serve(ctx) })
			g.Go(func() error { return a.Schedule(ctx) })
			return g.Wait()
		},
	}
}
