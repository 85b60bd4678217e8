// Package config loads and validates screenharvest configuration.
//
// Precedence, highest first: command-line flags bound into viper,
// SCREENHARVEST_* environment variables, the YAML config file, defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/jmylchreest/screenharvest/internal/browser"
	"github.com/jmylchreest/screenharvest/internal/logger"
	"github.com/jmylchreest/screenharvest/internal/screener"
)

// EnvPrefix prefixes every environment variable read.
const EnvPrefix = "SCREENHARVEST"

// Config is the full runtime configuration.
type Config struct {
	Region         string            `mapstructure:"region" validate:"required"`
	Output         string            `mapstructure:"output" validate:"required"`
	Format         string            `mapstructure:"format" validate:"omitempty,oneof=csv jsonl yaml sqlite"`
	URL            string            `mapstructure:"url" validate:"required,url"`
	MaxPages       int               `mapstructure:"max_pages" validate:"gte=0"`
	PageDelay      time.Duration     `mapstructure:"page_delay" validate:"gte=0"`
	DiagnosticsDir string            `mapstructure:"diagnostics_dir"`
	Locators       map[string]string `mapstructure:"locators"`

	Browser  BrowserConfig     `mapstructure:"browser"`
	Timeouts screener.Timeouts `mapstructure:"timeouts"`
	Log      LogConfig         `mapstructure:"log"`
}

// BrowserConfig configures Chrome.
type BrowserConfig struct {
	Headless     bool          `mapstructure:"headless"`
	Stealth      bool          `mapstructure:"stealth"`
	ChromePath   string        `mapstructure:"chrome_path"`
	UserAgent    string        `mapstructure:"user_agent"`
	WindowWidth  int           `mapstructure:"window_width" validate:"gte=320"`
	WindowHeight int           `mapstructure:"window_height" validate:"gte=240"`
	OpTimeout    time.Duration `mapstructure:"op_timeout" validate:"gt=0"`
	StartTimeout time.Duration `mapstructure:"start_timeout" validate:"gt=0"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Debug      bool   `mapstructure:"debug"`
	Quiet      bool   `mapstructure:"quiet"`
	JSON       bool   `mapstructure:"json"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
}

// SetDefaults registers every key with its default value. Keys must be
// registered for environment variables to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	b := browser.DefaultOptions()
	t := screener.DefaultTimeouts()

	v.SetDefault("region", "")
	v.SetDefault("output", "equities.csv")
	v.SetDefault("format", "")
	v.SetDefault("url", screener.DefaultURL)
	v.SetDefault("max_pages", 0)
	v.SetDefault("page_delay", "0s")
	v.SetDefault("diagnostics_dir", "")
	v.SetDefault("locators", map[string]string{})

	v.SetDefault("browser.headless", b.Headless)
	v.SetDefault("browser.stealth", false)
	v.SetDefault("browser.chrome_path", "")
	v.SetDefault("browser.user_agent", b.UserAgent)
	v.SetDefault("browser.window_width", b.WindowWidth)
	v.SetDefault("browser.window_height", b.WindowHeight)
	v.SetDefault("browser.op_timeout", b.OpTimeout)
	v.SetDefault("browser.start_timeout", b.StartTimeout)

	v.SetDefault("timeouts.poll", t.Poll)
	v.SetDefault("timeouts.ready", t.Ready)
	v.SetDefault("timeouts.dialog_open", t.DialogOpen)
	v.SetDefault("timeouts.dialog_close", t.DialogClose)
	v.SetDefault("timeouts.apply_enabled", t.ApplyEnabled)
	v.SetDefault("timeouts.option_checked", t.OptionChecked)
	v.SetDefault("timeouts.fast_path", t.FastPath)
	v.SetDefault("timeouts.staleness", t.Staleness)
	v.SetDefault("timeouts.signature", t.Signature)
	v.SetDefault("timeouts.consent", t.Consent)

	v.SetDefault("log.debug", false)
	v.SetDefault("log.quiet", false)
	v.SetDefault("log.json", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
}

// BindEnv enables SCREENHARVEST_* variables, with "." in keys mapped to "_".
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load unmarshals v, expands home-relative paths and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	for _, p := range []*string{&cfg.Output, &cfg.DiagnosticsDir, &cfg.Log.File, &cfg.Browser.ChromePath} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return nil, fmt.Errorf("could not expand path %q: %w", *p, err)
		}
		*p = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate checks field constraints and locator overrides.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, 0, len(verrs))
		for _, e := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s %s", fieldPath(e), formatValidationError(e)))
		}
		return errors.New(strings.Join(msgs, "; "))
	}
	if _, err := c.ScreenerLocators(); err != nil {
		return err
	}
	return nil
}

// fieldPath turns "Config.Browser.WindowWidth" into "Browser.WindowWidth".
func fieldPath(e validator.FieldError) string {
	ns := e.StructNamespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", e.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", e.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", e.Param())
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}

// ScreenerLocators returns the default locators with overrides applied.
func (c *Config) ScreenerLocators() (screener.Locators, error) {
	return screener.DefaultLocators().WithOverrides(c.Locators)
}

// BrowserOptions converts the browser section.
func (c *Config) BrowserOptions() browser.Options {
	return browser.Options{
		Headless:     c.Browser.Headless,
		Stealth:      c.Browser.Stealth,
		ChromePath:   c.Browser.ChromePath,
		UserAgent:    c.Browser.UserAgent,
		WindowWidth:  c.Browser.WindowWidth,
		WindowHeight: c.Browser.WindowHeight,
		OpTimeout:    c.Browser.OpTimeout,
		StartTimeout: c.Browser.StartTimeout,
	}
}

// ScreenerOptions converts the screener settings. Validate must have
// succeeded.
func (c *Config) ScreenerOptions() screener.Options {
	loc, _ := c.ScreenerLocators()
	return screener.Options{
		URL:       c.URL,
		Locators:  loc,
		Timeouts:  c.Timeouts,
		PageDelay: c.PageDelay,
	}
}

// LoggerOptions converts the log section.
func (c *Config) LoggerOptions() logger.Options {
	return logger.Options{
		Debug:      c.Log.Debug,
		Quiet:      c.Log.Quiet,
		JSON:       c.Log.JSON,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
	}
}

// ReadInConfig reads path, or .screenharvest.yaml from the working or home
// directory when path is empty. Only an explicit path must exist.
func ReadInConfig(v *viper.Viper, path string) error {
	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return fmt.Errorf("could not expand config path %q: %w", path, err)
		}
		v.SetConfigFile(expanded)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", expanded, err)
		}
		return nil
	}

	v.AddConfigPath(".")
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(home)
	}
	v.SetConfigName(".screenharvest")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}
