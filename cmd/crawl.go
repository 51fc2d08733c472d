package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCrawlCmd() *cobra.Command {
	var (
		sourceName string
		entry      string
	)
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Harvest one or all configured sources into catalog tables",
		Long: `Walks the listing pages of a source, parses every sermon page and
writes one catalog table for the run. Without --source every source that has
an entry_url is harvested.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if sourceName == "" {
				if entry != "" {
					return errors.New("--entry requires --source")
				}
				return a.CrawlAll(cmd.Context())
			}
			res, err := a.Crawl(cmd.Context(), sourceName, entry)
			if err != nil {
				return fmt.Errorf("crawl %s: %w", sourceName, err)
			}
			a.Logger().Info("crawl command finished",
				zap.String("source", sourceName),
				zap.Int("records", res.Table.Len()),
				zap.Int("failures", len(res.Failures)),
				zap.Strings("uris", res.Receipt.URIs),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&sourceName, "source", "", "name of the configured source to harvest")
	cmd.Flags().StringVar(&entry, "entry", "", "entry URL overriding the configured one")
	return cmd
}
