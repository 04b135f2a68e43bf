package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPrefix = "HARVESTER"

	PacingAdaptive = "adaptive"
	PacingFixed    = "fixed"

	defaultJournalFile = ".harvester.db"
)

// Config holds every option the harvester recognizes.
type Config struct {
	AppName   string `mapstructure:"app_name"`
	Env       string `mapstructure:"app_env"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	RSSFeedURL     string    `mapstructure:"rss_feed_url"`
	OutputBaseDir  string    `mapstructure:"output_base_dir"`
	MaxWorkers     int       `mapstructure:"max_workers"`
	DelayRange     []float64 `mapstructure:"delay_range"`
	RetryLimit     int       `mapstructure:"retry_limit"`
	TimeoutSeconds float64   `mapstructure:"timeout"`
	PacingMode     string    `mapstructure:"pacing_mode"`
	Timezone       string    `mapstructure:"timezone"`

	UserAgent           string   `mapstructure:"user_agent"`
	AcceptLanguage      string   `mapstructure:"accept_language"`
	MaxRedirects        int      `mapstructure:"max_redirects"`
	ContentSelectors    []string `mapstructure:"content_selectors"`
	ReadabilityFallback bool     `mapstructure:"readability_fallback"`

	PublishersFile string `mapstructure:"publishers_file"`

	JournalType          string `mapstructure:"journal_type"`
	JournalPath          string `mapstructure:"journal_path"`
	JournalRetentionSecs int64  `mapstructure:"journal_retention_seconds"`
	JournalCleanupSecs   int64  `mapstructure:"journal_cleanup_interval_seconds"`

	Timeout                time.Duration  `mapstructure:"-"`
	Location               *time.Location `mapstructure:"-"`
	JournalRetention       time.Duration  `mapstructure:"-"`
	JournalCleanupInterval time.Duration  `mapstructure:"-"`
	SourceFile             string         `mapstructure:"-"`
}

// Load reads configuration from defaults, an optional config file and the
// environment (HARVESTER_ prefix), then validates it. Clamping is not applied
// here; callers run ApplyPolicy and log the adjustments.
func Load(path string) (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	source, err := readConfigFile(v, path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		numberListHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.SourceFile = source

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// numberListHook lets environment values such as "6,12" or "6 12" fill
// []float64 options like delay_range.
func numberListHook() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.Slice || to.Elem().Kind() != reflect.Float64 {
			return data, nil
		}
		fields := strings.FieldsFunc(data.(string), func(r rune) bool {
			return r == ',' || r == '[' || r == ']' || unicode.IsSpace(r)
		})
		out := make([]float64, 0, len(fields))
		for _, f := range fields {
			n, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("parse %q as a number: %w", f, err)
			}
			out = append(out, n)
		}
		return out, nil
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "samvad-article-harvester")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	v.SetDefault("rss_feed_url", "")
	v.SetDefault("output_base_dir", "")
	v.SetDefault("max_workers", 3)
	v.SetDefault("delay_range", []float64{5, 15})
	v.SetDefault("retry_limit", 3)
	v.SetDefault("timeout", 30) // seconds
	v.SetDefault("pacing_mode", PacingAdaptive)
	v.SetDefault("timezone", "Local")

	v.SetDefault("user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("accept_language", "zh-CN,zh;q=0.9,en;q=0.8")
	v.SetDefault("max_redirects", 10)
	v.SetDefault("content_selectors", []string{"#js_content", ".rich_media_content"})
	v.SetDefault("readability_fallback", false)

	v.SetDefault("publishers_file", "")

	v.SetDefault("journal_type", "bbolt")
	v.SetDefault("journal_path", "")
	v.SetDefault("journal_retention_seconds", int64((30*24*time.Hour)/time.Second))
	v.SetDefault("journal_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))
}

// readConfigFile loads an explicit file, or searches the usual locations when
// path is empty. A nested "configuration" section is merged over the top level.
func readConfigFile(v *viper.Viper, path string) (string, error) {
	path = strings.TrimSpace(path)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("harvester")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("read config file: %w", err)
	}

	if nested := v.Sub("configuration"); nested != nil {
		if err := v.MergeConfigMap(nested.AllSettings()); err != nil {
			return "", fmt.Errorf("merge configuration section: %w", err)
		}
	}
	return v.ConfigFileUsed(), nil
}

func (c *Config) finalize() error {
	c.RSSFeedURL = strings.TrimSpace(c.RSSFeedURL)
	c.OutputBaseDir = strings.TrimSpace(c.OutputBaseDir)
	c.PacingMode = strings.ToLower(strings.TrimSpace(c.PacingMode))
	c.JournalType = strings.ToLower(strings.TrimSpace(c.JournalType))
	c.ContentSelectors = compact(c.ContentSelectors)

	if err := c.Validate(); err != nil {
		return err
	}

	c.Timeout = time.Duration(c.TimeoutSeconds * float64(time.Second))
	c.JournalRetention = time.Duration(c.JournalRetentionSecs) * time.Second
	c.JournalCleanupInterval = time.Duration(c.JournalCleanupSecs) * time.Second
	if strings.TrimSpace(c.JournalPath) == "" {
		c.JournalPath = filepath.Join(c.OutputBaseDir, defaultJournalFile)
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	c.Location = loc
	return nil
}

// Validate reports malformed or missing options. Out-of-range numeric values
// are not errors; ApplyPolicy clamps them.
func (c *Config) Validate() error {
	var errs []error

	if c.RSSFeedURL == "" {
		errs = append(errs, errors.New("rss_feed_url is required"))
	} else if u, err := url.Parse(c.RSSFeedURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("rss_feed_url %q must be an absolute http(s) URL", c.RSSFeedURL))
	}
	if c.OutputBaseDir == "" {
		errs = append(errs, errors.New("output_base_dir is required"))
	}
	if len(c.DelayRange) != 2 {
		errs = append(errs, fmt.Errorf("delay_range must have exactly 2 values, got %d", len(c.DelayRange)))
	}
	if c.MaxRedirects < 0 {
		errs = append(errs, errors.New("invalid max_redirects (must not be negative)"))
	}
	if c.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("invalid timeout (must be positive seconds)"))
	}
	switch c.PacingMode {
	case PacingAdaptive, PacingFixed:
	default:
		errs = append(errs, fmt.Errorf("unsupported pacing_mode %q", c.PacingMode))
	}
	switch c.JournalType {
	case "", "none", "disabled", "bbolt":
	default:
		errs = append(errs, fmt.Errorf("unsupported journal_type %q", c.JournalType))
	}
	if c.JournalType == "bbolt" {
		if c.JournalRetentionSecs <= 0 {
			errs = append(errs, errors.New("invalid journal_retention_seconds (must be positive seconds)"))
		}
		if c.JournalCleanupSecs <= 0 {
			errs = append(errs, errors.New("invalid journal_cleanup_interval_seconds (must be positive seconds)"))
		}
	}
	if len(c.ContentSelectors) == 0 {
		errs = append(errs, errors.New("content_selectors must not be empty"))
	}

	return errors.Join(errs...)
}

// DelayBounds returns the configured delay range as durations.
func (c *Config) DelayBounds() (time.Duration, time.Duration) {
	if len(c.DelayRange) != 2 {
		return 0, 0
	}
	return seconds(c.DelayRange[0]), seconds(c.DelayRange[1])
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
