package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/dispatch-console/internal/density"
)

// Config holds the full application configuration.
type Config struct {
	Backend    BackendConfig    `yaml:"backend" mapstructure:"backend"`
	Map        MapConfig        `yaml:"map" mapstructure:"map"`
	Boundaries BoundariesConfig `yaml:"boundaries" mapstructure:"boundaries"`
	Density    DensityConfig    `yaml:"density" mapstructure:"density"`
	Poll       PollConfig       `yaml:"poll" mapstructure:"poll"`
	Journal    JournalConfig    `yaml:"journal" mapstructure:"journal"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// BackendConfig configures the rescue backend client.
type BackendConfig struct {
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`
	Token            string  `yaml:"token" mapstructure:"token"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs" validate:"gte=1"`
	RatePerSec       float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec" validate:"gt=0"`
	Burst            int     `yaml:"burst" mapstructure:"burst" validate:"gte=1"`
	RetryAttempts    int     `yaml:"retry_attempts" mapstructure:"retry_attempts" validate:"gte=1,lte=10"`
	BreakerFailures  int     `yaml:"breaker_failures" mapstructure:"breaker_failures" validate:"gte=1"`
	BreakerResetSecs int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs" validate:"gte=1"`
}

// Timeout returns the per-request timeout.
func (c BackendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// BreakerReset returns how long the breaker stays open.
func (c BackendConfig) BreakerReset() time.Duration {
	return time.Duration(c.BreakerResetSecs) * time.Second
}

// MapConfig configures the initial map view and the point layer.
type MapConfig struct {
	CenterLat   float64 `yaml:"center_lat" mapstructure:"center_lat" validate:"gte=-90,lte=90"`
	CenterLng   float64 `yaml:"center_lng" mapstructure:"center_lng" validate:"gte=-180,lte=180"`
	Zoom        int     `yaml:"zoom" mapstructure:"zoom" validate:"gte=1,lte=22"`
	PreviewZoom int     `yaml:"preview_zoom" mapstructure:"preview_zoom" validate:"gte=1,lte=22"`
	PointSource string  `yaml:"point_source" mapstructure:"point_source" validate:"oneof=victims messages"`
	MaxNotices  int     `yaml:"max_notices" mapstructure:"max_notices" validate:"gte=1"`
}

// BoundariesConfig selects where ward polygons come from.
type BoundariesConfig struct {
	Source    string `yaml:"source" mapstructure:"source" validate:"oneof=static dynamic file"`
	Path      string `yaml:"path" mapstructure:"path" validate:"required_if=Source file"`
	NameField string `yaml:"name_field" mapstructure:"name_field"`
}

// DensityConfig configures the ward color scale. Thresholds are listed
// highest first and pair with Colors by position.
type DensityConfig struct {
	Thresholds []int    `yaml:"thresholds" mapstructure:"thresholds"`
	Colors     []string `yaml:"colors" mapstructure:"colors"`
	Baseline   string   `yaml:"baseline" mapstructure:"baseline"`
}

// Bands builds the color scale. An empty config yields the default palette.
func (c DensityConfig) Bands() (density.Bands, error) {
	if len(c.Thresholds) == 0 && len(c.Colors) == 0 {
		return density.DefaultBands(), nil
	}
	if len(c.Thresholds) != len(c.Colors) {
		return density.Bands{}, eris.Errorf("config: density has %d thresholds and %d colors", len(c.Thresholds), len(c.Colors))
	}
	steps := make([]density.Band, len(c.Thresholds))
	for i := range c.Thresholds {
		steps[i] = density.Band{Above: c.Thresholds[i], Color: c.Colors[i]}
	}
	baseline := c.Baseline
	if baseline == "" {
		baseline = density.DefaultBands().Baseline()
	}
	return density.NewBands(steps, baseline)
}

// PollConfig configures periodic reloads. Zero disables polling.
type PollConfig struct {
	IntervalSecs int `yaml:"interval_secs" mapstructure:"interval_secs" validate:"gte=0"`
}

// Interval returns the poll interval.
func (c PollConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSecs) * time.Second
}

// JournalConfig configures the dispatch journal store.
type JournalConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver" validate:"oneof=none postgres sqlite"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// MonitoringConfig configures dispatch health alerts posted to an operations
// webhook. Checks only run when WebhookURL is set and the journal is enabled.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url" validate:"omitempty,url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs" validate:"gte=0"`
	LookbackMinutes      int     `yaml:"lookback_minutes" mapstructure:"lookback_minutes" validate:"gte=1"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold" validate:"gte=0,lte=1"`
	MinActions           int     `yaml:"min_actions" mapstructure:"min_actions" validate:"gte=1"`
}

// Lookback returns the window each check inspects.
func (c MonitoringConfig) Lookback() time.Duration {
	return time.Duration(c.LookbackMinutes) * time.Minute
}

// ServerConfig configures the console HTTP server.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	CORSOrigins        []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs" validate:"gte=0"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// Load reads configuration from file and environment. A .env file in the
// working directory, if any, is loaded into the environment first.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, eris.Wrap(err, "config: read .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DISPATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("backend.base_url", "http://localhost:5000")
	v.SetDefault("backend.token", "")
	v.SetDefault("backend.timeout_secs", 15)
	v.SetDefault("backend.rate_per_sec", 10)
	v.SetDefault("backend.burst", 5)
	v.SetDefault("backend.retry_attempts", 3)
	v.SetDefault("backend.breaker_failures", 5)
	v.SetDefault("backend.breaker_reset_secs", 30)
	v.SetDefault("map.center_lat", 19.076)
	v.SetDefault("map.center_lng", 72.8777)
	v.SetDefault("map.zoom", 12)
	v.SetDefault("map.preview_zoom", 15)
	v.SetDefault("map.point_source", "victims")
	v.SetDefault("map.max_notices", 20)
	v.SetDefault("boundaries.source", "static")
	v.SetDefault("boundaries.path", "")
	v.SetDefault("boundaries.name_field", "name")
	v.SetDefault("density.baseline", "#FFEDA0")
	v.SetDefault("poll.interval_secs", 30)
	v.SetDefault("journal.driver", "none")
	v.SetDefault("journal.database_url", "")
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 60)
	v.SetDefault("monitoring.lookback_minutes", 30)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.min_actions", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.request_timeout_secs", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the configuration for the given command: "serve",
// "snapshot" or "journal". Every problem is reported at once.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0 and <= 65535")
		}
		problems = append(problems, c.journalProblems()...)
	case "snapshot":
	case "journal":
		if c.Journal.Driver == "" || c.Journal.Driver == "none" {
			problems = append(problems, "journal.driver must be postgres or sqlite")
		}
		problems = append(problems, c.journalProblems()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return eris.Wrap(err, "config: validate")
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}
	if _, err := c.Density.Bands(); err != nil {
		problems = append(problems, "density: "+err.Error())
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, fmt.Sprintf("log.level %q is not a valid level", c.Log.Level))
	}

	if len(problems) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) journalProblems() []string {
	switch c.Journal.Driver {
	case "postgres", "sqlite":
		if c.Journal.DatabaseURL == "" {
			return []string{"journal.database_url is required"}
		}
	}
	return nil
}

// describe renders a field error with the config key, e.g.
// "map.point_source must be one of [victims messages]".
func describe(fe validator.FieldError) string {
	key := configKey(fe.StructNamespace())
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", key, fe.Param())
	case "required", "required_if":
		return key + " is required"
	case "url":
		return key + " must be a URL"
	default:
		return fmt.Sprintf("%s must be %s %s", key, fe.Tag(), fe.Param())
	}
}

var keyNames = map[string]string{
	"BaseURL":              "base_url",
	"TimeoutSecs":          "timeout_secs",
	"RatePerSec":           "rate_per_sec",
	"RetryAttempts":        "retry_attempts",
	"BreakerFailures":      "breaker_failures",
	"BreakerResetSecs":     "breaker_reset_secs",
	"CenterLat":            "center_lat",
	"CenterLng":            "center_lng",
	"PreviewZoom":          "preview_zoom",
	"PointSource":          "point_source",
	"MaxNotices":           "max_notices",
	"NameField":            "name_field",
	"IntervalSecs":         "interval_secs",
	"DatabaseURL":          "database_url",
	"WebhookURL":           "webhook_url",
	"CheckIntervalSecs":    "check_interval_secs",
	"LookbackMinutes":      "lookback_minutes",
	"FailureRateThreshold": "failure_rate_threshold",
	"MinActions":           "min_actions",
	"CORSOrigins":          "cors_origins",
	"RequestTimeoutSecs":   "request_timeout_secs",
}

// configKey maps "Config.Map.PointSource" to "map.point_source".
func configKey(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 0 && parts[0] == "Config" {
		parts = parts[1:]
	}
	for i, p := range parts {
		if k, ok := keyNames[p]; ok {
			parts[i] = k
		} else {
			parts[i] = strings.ToLower(p)
		}
	}
	return strings.Join(parts, ".")
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
