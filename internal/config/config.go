// Package config loads and validates harvester configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/sermon-harvester/internal/logging"
)

// Source kinds understood by the adapter registry.
const (
	KindListing  = "listing"
	KindPlatform = "platform"
	KindHybrid   = "hybrid"
)

// Config captures every knob of the harvester.
type Config struct {
	Logging  logging.Config `mapstructure:"logging"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	Naming   NamingConfig   `mapstructure:"naming"`
	Sources  []SourceConfig `mapstructure:"sources"`
	Download DownloadConfig `mapstructure:"download"`
	Storage  StorageConfig  `mapstructure:"storage"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
}

// HTTPConfig configures page and asset fetching.
type HTTPConfig struct {
	UserAgent         string `mapstructure:"user_agent"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	JobTimeoutSeconds int    `mapstructure:"job_timeout_seconds"`
	MaxRetries        int    `mapstructure:"max_retries"`
	BackoffInitialMs  int    `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs      int    `mapstructure:"backoff_max_ms"`
	DelayMs           int    `mapstructure:"delay_ms"`
	RespectRobots     bool   `mapstructure:"respect_robots"`
}

// CrawlConfig governs pagination and parse dispatch.
type CrawlConfig struct {
	MaxPages int    `mapstructure:"max_pages"`
	Cores    string `mapstructure:"cores"`
}

// NamingConfig tunes the filename synthesizer.
type NamingConfig struct {
	Replacement   string `mapstructure:"replacement"`
	Transliterate bool   `mapstructure:"transliterate"`
}

// SourceConfig declares one configured site adapter.
type SourceConfig struct {
	Name      string      `mapstructure:"name"`
	Kind      string      `mapstructure:"kind"`
	EntryURL  string      `mapstructure:"entry_url"`
	PageParam string      `mapstructure:"page_param"`
	Rules     RulesConfig `mapstructure:"rules"`
}

// RulesConfig holds the site-specific extraction rules. Empty values fall back
// to the defaults of the adapter kind.
type RulesConfig struct {
	ItemLinkSelector string            `mapstructure:"item_link_selector"`
	TitleSelector    string            `mapstructure:"title_selector"`
	LabelSelector    string            `mapstructure:"label_selector"`
	ContentSelector  string            `mapstructure:"content_selector"`
	AudioSelector    string            `mapstructure:"audio_selector"`
	FilesSelector    string            `mapstructure:"files_selector"`
	PayloadSelector  string            `mapstructure:"payload_selector"`
	SubtitleSelector string            `mapstructure:"subtitle_selector"`
	Separator        string            `mapstructure:"separator"`
	DateLayouts      []string          `mapstructure:"date_layouts"`
	Labels           map[string]string `mapstructure:"labels"`
	Paths            map[string]string `mapstructure:"paths"`
}

// DownloadConfig controls the download manager.
type DownloadConfig struct {
	Dir                    string   `mapstructure:"dir"`
	Extensions             []string `mapstructure:"extensions"`
	Continue               bool     `mapstructure:"continue"`
	Transcode              bool     `mapstructure:"transcode"`
	FFmpegPath             string   `mapstructure:"ffmpeg_path"`
	StaleClaimAfterSeconds int      `mapstructure:"stale_claim_after_seconds"`
	Cores                  string   `mapstructure:"cores"`
}

// StorageConfig selects where catalog tables are persisted.
type StorageConfig struct {
	Local    LocalStorageConfig    `mapstructure:"local"`
	GCS      GCSStorageConfig      `mapstructure:"gcs"`
	Postgres PostgresStorageConfig `mapstructure:"postgres"`
}

// LocalStorageConfig points at the catalog directory.
type LocalStorageConfig struct {
	Dir string `mapstructure:"dir"`
}

// GCSStorageConfig enables mirroring table files to a bucket.
type GCSStorageConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// PostgresStorageConfig enables record upserts.
type PostgresStorageConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// PubSubConfig holds the hand-off notice topic.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig controls the ops endpoint.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// ScheduleConfig drives the schedule command.
type ScheduleConfig struct {
	IntervalMinutes int  `mapstructure:"interval_minutes"`
	Download        bool `mapstructure:"download"`
}

// Load builds a Config from disk/environment. An empty path searches the
// usual locations for sermons.yaml and tolerates its absence.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SERMONS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("sermons")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.sermons")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("http.user_agent", "sermon-harvester/0.1")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.job_timeout_seconds", 600)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 4000)
	v.SetDefault("http.delay_ms", 500)
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("crawl.max_pages", 500)
	v.SetDefault("crawl.cores", "1")
	v.SetDefault("naming.replacement", "_")
	v.SetDefault("naming.transliterate", true)
	v.SetDefault("download.dir", "sermons")
	v.SetDefault("download.extensions", []string{".mp3", ".m4a", ".wav", ".flac"})
	v.SetDefault("download.continue", true)
	v.SetDefault("download.transcode", false)
	v.SetDefault("download.ffmpeg_path", "ffmpeg")
	v.SetDefault("download.stale_claim_after_seconds", 6*60*60)
	v.SetDefault("download.cores", "1")
	v.SetDefault("storage.local.dir", "catalog")
	v.SetDefault("storage.gcs.prefix", "catalog")
	v.SetDefault("storage.postgres.table", "sermons")
	v.SetDefault("schedule.interval_minutes", 24*60)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.Crawl.MaxPages <= 0 {
		return fmt.Errorf("crawl.max_pages must be > 0")
	}
	if len(c.Naming.Replacement) > 1 || strings.ContainsAny(c.Naming.Replacement, `\/:*?"<>|&`) {
		return fmt.Errorf("naming.replacement must be a single filesystem-safe character")
	}
	if len(c.Download.Extensions) == 0 {
		return fmt.Errorf("download.extensions must not be empty")
	}
	for _, ext := range c.Download.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("download.extensions entry %q must start with a dot", ext)
		}
	}
	if c.Storage.Local.Dir == "" {
		return fmt.Errorf("storage.local.dir must be set")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	if c.Schedule.IntervalMinutes <= 0 {
		return fmt.Errorf("schedule.interval_minutes must be > 0")
	}
	seen := make(map[string]struct{}, len(c.Sources))
	for i, src := range c.Sources {
		if src.Name == "" {
			return fmt.Errorf("sources[%d].name must be set", i)
		}
		if _, dup := seen[src.Name]; dup {
			return fmt.Errorf("sources[%d].name %q is duplicated", i, src.Name)
		}
		seen[src.Name] = struct{}{}
		switch src.Kind {
		case KindListing, KindPlatform, KindHybrid:
		default:
			return fmt.Errorf("sources[%d].kind %q must be one of listing, platform, hybrid", i, src.Kind)
		}
		if src.EntryURL != "" {
			if _, err := url.ParseRequestURI(src.EntryURL); err != nil {
				return fmt.Errorf("sources[%d].entry_url: %w", i, err)
			}
		}
	}
	return nil
}

// Source returns the configured source with the given name.
func (c Config) Source(name string) (SourceConfig, bool) {
	for _, src := range c.Sources {
		if src.Name == name {
			return src, true
		}
	}
	return SourceConfig{}, false
}

// RequestTimeout is the per-request HTTP timeout.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// JobTimeout bounds one dispatched job; zero disables the bound.
func (c Config) JobTimeout() time.Duration {
	return time.Duration(c.HTTP.JobTimeoutSeconds) * time.Second
}

// StaleClaimAfter is the age after which a download claim is broken.
func (c Config) StaleClaimAfter() time.Duration {
	return time.Duration(c.Download.StaleClaimAfterSeconds) * time.Second
}

// ScheduleInterval is the period of the schedule command.
func (c Config) ScheduleInterval() time.Duration {
	return time.Duration(c.Schedule.IntervalMinutes) * time.Minute
}
