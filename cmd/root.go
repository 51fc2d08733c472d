// Package cmd defines the sermons command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sermon-harvester/internal/app"
	"github.com/JakeFAU/sermon-harvester/internal/config"
	"github.com/JakeFAU/sermon-harvester/internal/logging"
	"github.com/JakeFAU/sermon-harvester/internal/publisher/memory"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const (
	appKey   appKeyType = "app"
	dryTopic            = "dry-run"
)

// newApp is the application factory. It is a variable so tests can swap it.
var newApp = func(ctx context.Context, cfgFile string, notices *memory.Publisher) (*app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	var opts []app.Option
	if notices != nil {
		opts = append(opts, app.WithPublisher(notices, dryTopic))
	}
	return app.New(ctx, cfg, logger, opts...)
}

// session owns the App built for one invocation. It is closed after the
// command returns, whether or not it failed.
type session struct {
	app     *app.App
	notices *memory.Publisher
}

// Close logs withheld dry-run notices and releases the App.
func (s *session) Close() {
	if s.app == nil {
		return
	}
	if s.notices != nil {
		for _, msg := range s.notices.Messages() {
			s.app.Logger().Info("hand-off notice withheld", zap.String("topic", msg.Topic), zap.ByteString("notice", msg.Data))
		}
	}
	s.app.Close()
	s.app = nil
}

func newRootCmd() (*cobra.Command, *session) {
	var (
		cfgFile string
		dryRun  bool
	)
	s := &session{}
	cmd := &cobra.Command{
		Use:   "sermons",
		Short: "Harvest sermon catalogs and download their audio.",
		Long: `sermons walks the sermon archives of configured church websites,
normalizes every sermon into one catalog schema, writes a catalog table per
run, and downloads (optionally transcoding) the referenced audio.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if dryRun {
				s.notices = memory.New()
			}
			appInstance, err := newApp(cmd.Context(), cfgFile, s.notices)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			s.app = appInstance
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./sermons.yaml or $HOME/.sermons/sermons.yaml)")

	cmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "keep catalog hand-off notices in memory and log them instead of publishing")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newDownloadCmd())
	cmd.AddCommand(newScheduleCmd())
	cmd.AddCommand(newStateCmd())
	return cmd, s
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	root, s := newRootCmd()
	err := root.ExecuteContext(ctx)
	s.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
