package cmd

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/sermon-harvester/internal/app"
	"github.com/JakeFAU/sermon-harvester/internal/config"
	"github.com/JakeFAU/sermon-harvester/internal/publisher/memory"
)

func TestRootRegistersSubcommands(t *testing.T) {
	root, _ := newRootCmd()
	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"crawl", "download", "schedule", "state"})
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("dry-run"))
}

func TestResolveAppWithoutInit(t *testing.T) {
	_, err := resolveApp(context.Background())
	require.Error(t, err)
}

func TestInitFailureIsReported(t *testing.T) {
	orig := newApp
	t.Cleanup(func() { newApp = orig })

	var gotNotices *memory.Publisher
	newApp = func(_ context.Context, cfgFile string, notices *memory.Publisher) (*app.App, error) {
		gotNotices = notices
		assert.Equal(t, "custom.yaml", cfgFile)
		return nil, errors.New("boom")
	}

	root, _ := newRootCmd()
	root.SetArgs([]string{"--config", "custom.yaml", "--dry-run", "crawl"})
	root.SilenceErrors = true
	err := root.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "boom")
	assert.NotNil(t, gotNotices)
}

func TestCrawlRequiresApp(t *testing.T) {
	cmd := newCrawlCmd()
	cmd.SetArgs([]string{"--entry", "https://grace.example/sermons"})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	err := cmd.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "not initialized")
}

func TestSessionClosesAppAfterFailedCommand(t *testing.T) {
	orig := newApp
	t.Cleanup(func() { newApp = orig })

	dir := t.TempDir()
	core, logs := observer.New(zapcore.InfoLevel)
	newApp = func(ctx context.Context, _ string, notices *memory.Publisher) (*app.App, error) {
		cfg := config.Config{
			HTTP:     config.HTTPConfig{TimeoutSeconds: 5},
			Crawl:    config.CrawlConfig{MaxPages: 1, Cores: "1"},
			Download: config.DownloadConfig{Dir: filepath.Join(dir, "sermons"), Extensions: []string{".mp3"}, Cores: "1"},
			Storage:  config.StorageConfig{Local: config.LocalStorageConfig{Dir: filepath.Join(dir, "catalog")}},
		}
		return app.New(ctx, cfg, zap.New(core), app.WithPublisher(notices, dryTopic))
	}

	root, s := newRootCmd()
	root.SetArgs([]string{"--dry-run", "download", "--catalog", filepath.Join(dir, "missing.csv")})
	root.SilenceErrors = true
	err := root.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "missing.csv")
	assert.Zero(t, logs.FilterMessage("application services closed").Len())

	s.Close()
	assert.Equal(t, 1, logs.FilterMessage("application services closed").Len())
	assert.Nil(t, s.app)

	s.Close()
	assert.Equal(t, 1, logs.FilterMessage("application services closed").Len())
}
