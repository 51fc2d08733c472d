package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sermon-harvester/internal/download"
)

func newDownloadCmd() *cobra.Command {
	var catalogs []string
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the audio referenced by catalog tables",
		Long: `Reads the given catalog tables (default: every table in the catalog
directory), removes duplicate rows and downloads each sermon's audio into the
download directory. Existing files are left alone and partial files resume.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			records, err := a.LoadCatalog(catalogs)
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}
			failed := 0
			for _, out := range a.Download(cmd.Context(), records) {
				if out.Action == download.ActionFailed {
					failed++
				}
			}
			a.Logger().Info("download command finished", zap.Int("records", len(records)), zap.Int("failed", failed))
			if failed > 0 {
				return fmt.Errorf("%d downloads failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&catalogs, "catalog", nil, "catalog table files to read (repeatable)")
	return cmd
}
