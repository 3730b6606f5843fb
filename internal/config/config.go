package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/reverscodes/codes-cli/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Scrape     ScrapeConfig     `yaml:"scrape" mapstructure:"scrape"`
	Screen     ScreenConfig     `yaml:"screen" mapstructure:"screen"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Site       SiteConfig       `yaml:"site" mapstructure:"site"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Games      []model.Game     `yaml:"games" mapstructure:"games"`
}

// StoreConfig configures the run history backend. An empty driver disables
// run history.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// ServerConfig configures the daemon's HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	IntervalHours  int      `yaml:"interval_hours" mapstructure:"interval_hours"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// Interval returns the time between scheduled runs.
func (s ServerConfig) Interval() time.Duration {
	return time.Duration(s.IntervalHours) * time.Hour
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ScrapeConfig configures page fetching.
type ScrapeConfig struct {
	UserAgent     string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retries       int     `yaml:"retries" mapstructure:"retries"`
	MinDelayMs    int     `yaml:"min_delay_ms" mapstructure:"min_delay_ms"`
	MaxDelayMs    int     `yaml:"max_delay_ms" mapstructure:"max_delay_ms"`
	Concurrency   int     `yaml:"concurrency" mapstructure:"concurrency"`
	RatePerSec    float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	CacheTTLHours int     `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	MaxBodyBytes  int64   `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	ProbeTimeout  int     `yaml:"probe_timeout_secs" mapstructure:"probe_timeout_secs"`
}

// Timeout returns the per-request timeout.
func (s ScrapeConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSecs) * time.Second
}

// MinDelay returns the lower bound of the pause between requests.
func (s ScrapeConfig) MinDelay() time.Duration {
	return time.Duration(s.MinDelayMs) * time.Millisecond
}

// MaxDelay returns the upper bound of the pause between requests.
func (s ScrapeConfig) MaxDelay() time.Duration {
	return time.Duration(s.MaxDelayMs) * time.Millisecond
}

// CacheTTL returns how long fetched pages stay cached. Zero disables the
// cache.
func (s ScrapeConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLHours) * time.Hour
}

// ScreenConfig configures the code screener's deny list.
type ScreenConfig struct {
	DenyList       string `yaml:"deny_list" mapstructure:"deny_list"`
	ReplaceDefault bool   `yaml:"replace_default" mapstructure:"replace_default"`
}

// ScoringConfig configures record scoring and the final list size.
type ScoringConfig struct {
	CodeWeight     float64  `yaml:"code_weight" mapstructure:"code_weight"`
	RewardWeight   float64  `yaml:"reward_weight" mapstructure:"reward_weight"`
	SourceWeight   float64  `yaml:"source_weight" mapstructure:"source_weight"`
	LengthWeight   float64  `yaml:"length_weight" mapstructure:"length_weight"`
	TrustedSources []string `yaml:"trusted_sources" mapstructure:"trusted_sources"`
	IdealMinLen    int      `yaml:"ideal_min_len" mapstructure:"ideal_min_len"`
	IdealMaxLen    int      `yaml:"ideal_max_len" mapstructure:"ideal_max_len"`
	MinQuality     float64  `yaml:"min_quality" mapstructure:"min_quality"`
	MaxCodes       int      `yaml:"max_codes" mapstructure:"max_codes"`
}

// PipelineConfig configures per-game extraction behavior.
type PipelineConfig struct {
	Mode           string `yaml:"mode" mapstructure:"mode"`
	MinActiveCodes int    `yaml:"min_active_codes" mapstructure:"min_active_codes"`
	DryRun         bool   `yaml:"dry_run" mapstructure:"dry_run"`
}

// SiteConfig locates the static site on disk.
type SiteConfig struct {
	Root    string `yaml:"root" mapstructure:"root"`
	Sitemap string `yaml:"sitemap" mapstructure:"sitemap"`
}

// MonitoringConfig configures run-health alerting in serve mode. An empty
// webhook URL disables the checker.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	MinAvgQuality        float64 `yaml:"min_avg_quality" mapstructure:"min_avg_quality"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// Load reads configuration from file and environment. A non-empty path
// names the config file; otherwise config.yaml is looked up in the working
// directory.
func Load(path ...string) (*Config, error) {
	v := viper.New()

	// Config file
	if len(path) > 0 && path[0] != "" {
		v.SetConfigFile(path[0])
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("CODES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "codes.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.interval_hours", 6)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("scrape.user_agent", "")
	v.SetDefault("scrape.timeout_secs", 15)
	v.SetDefault("scrape.retries", 3)
	v.SetDefault("scrape.min_delay_ms", 2000)
	v.SetDefault("scrape.max_delay_ms", 4000)
	v.SetDefault("scrape.concurrency", 1)
	v.SetDefault("scrape.rate_per_sec", 1.0)
	v.SetDefault("scrape.cache_ttl_hours", 0)
	v.SetDefault("scrape.max_body_bytes", 2<<20)
	v.SetDefault("scrape.probe_timeout_secs", 10)
	v.SetDefault("screen.deny_list", "")
	v.SetDefault("screen.replace_default", false)
	v.SetDefault("scoring.code_weight", 0.4)
	v.SetDefault("scoring.reward_weight", 0.3)
	v.SetDefault("scoring.source_weight", 0.2)
	v.SetDefault("scoring.length_weight", 0.1)
	v.SetDefault("scoring.trusted_sources", []string{"progameguides", "beebom", "ign", "dexerto", "videogamer"})
	v.SetDefault("scoring.ideal_min_len", 5)
	v.SetDefault("scoring.ideal_max_len", 15)
	v.SetDefault("scoring.min_quality", 0.7)
	v.SetDefault("scoring.max_codes", 15)
	v.SetDefault("pipeline.mode", string(model.ModeSections))
	v.SetDefault("pipeline.min_active_codes", 3)
	v.SetDefault("pipeline.dry_run", false)
	v.SetDefault("site.root", ".")
	v.SetDefault("site.sitemap", "sitemap.xml")
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.min_avg_quality", 0.5)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 3600)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks value ranges and cross-field constraints for the given
// command mode: "run", "serve" or "check".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "run", "check":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.IntervalHours <= 0 {
			errs = append(errs, "server.interval_hours must be > 0")
		}
		if c.Monitoring.WebhookURL != "" && c.Monitoring.LookbackWindowHours <= 0 {
			errs = append(errs, "monitoring.lookback_window_hours must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "", "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite, postgres or empty, got %q", c.Store.Driver))
	}
	if c.Store.Driver != "" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required when store.driver is set")
	}

	switch model.Mode(c.Pipeline.Mode) {
	case model.ModeSections, model.ModePrecise:
	default:
		errs = append(errs, fmt.Sprintf("pipeline.mode must be %q or %q, got %q", model.ModeSections, model.ModePrecise, c.Pipeline.Mode))
	}
	if c.Pipeline.MinActiveCodes < 0 {
		errs = append(errs, "pipeline.min_active_codes must be >= 0")
	}

	if c.Scrape.TimeoutSecs <= 0 {
		errs = append(errs, "scrape.timeout_secs must be > 0")
	}
	if c.Scrape.Retries < 1 {
		errs = append(errs, "scrape.retries must be >= 1")
	}
	if c.Scrape.MinDelayMs < 0 || c.Scrape.MaxDelayMs < c.Scrape.MinDelayMs {
		errs = append(errs, fmt.Sprintf("scrape delays must satisfy 0 <= min_delay_ms <= max_delay_ms, got %d..%d", c.Scrape.MinDelayMs, c.Scrape.MaxDelayMs))
	}
	if c.Scrape.Concurrency < 1 {
		errs = append(errs, "scrape.concurrency must be >= 1")
	}
	if c.Scrape.RatePerSec < 0 {
		errs = append(errs, "scrape.rate_per_sec must be >= 0")
	}

	seen := make(map[string]bool, len(c.Games))
	for i, g := range c.Games {
		switch {
		case g.Key == "":
			errs = append(errs, fmt.Sprintf("games[%d].key is required", i))
		case seen[g.Key]:
			errs = append(errs, fmt.Sprintf("games[%d].key %q is duplicated", i, g.Key))
		}
		seen[g.Key] = true
		if g.Page == "" {
			errs = append(errs, fmt.Sprintf("games[%d].page is required", i))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Game returns the configured game with the given key.
func (c *Config) Game(key string) (model.Game, bool) {
	for _, g := range c.Games {
		if g.Key == key {
			return g, true
		}
	}
	return model.Game{}, false
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
