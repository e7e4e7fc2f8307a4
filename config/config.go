package config

import (
	"log/slog"
	"math"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type MonitorConfig struct {
	// Approximately how long to monitor before reloading the mirror defs
	// and starting over.
	Period string `mapstructure:"period"`
	// Steady-state delay between checks of one mirror.
	CheckInterval string `mapstructure:"check_interval"`
	// Delay before the first check of each mirror after a topology load.
	InitialCheckDelay string `mapstructure:"initial_check_delay"`
	// How often the loop wakes to look for due mirrors.
	Tick string `mapstructure:"tick"`
}

type HealthConfig struct {
	// Staleness below which a mirror is reported with no caveat.
	FreshnessTarget string `mapstructure:"freshness_target"`
	// Staleness above which a mirror is reported unhealthy.
	StalenessLimit string `mapstructure:"staleness_limit"`
	// Window after an authority update during which elevated staleness is
	// not alarmed.
	AuthorityGracePeriod string `mapstructure:"authority_grace_period"`
	// How long a mirror may stay unmonitorable before it is reported
	// unhealthy; divided by the check interval to get the failure limit.
	FailWindow string `mapstructure:"fail_window"`
}

type FetchConfig struct {
	// End-to-end budget for retrieving one release file.
	Timeout   string `mapstructure:"timeout"`
	UserAgent string `mapstructure:"user_agent"`
}

type RegistryConfig struct {
	ToolsRepo    string `mapstructure:"tools_repo"`
	ToolsRepoURL string `mapstructure:"tools_repo_url"`
	MirrorDir    string `mapstructure:"mirror_dir"`
	// Mirrors whose URL starts with this prefix are authoritative.
	AuthorityPrefix string `mapstructure:"authority_prefix"`
}

type TrackerConfig struct {
	Repo      string `mapstructure:"repo"`
	AutoClose bool   `mapstructure:"auto_close"`
}

type CacheConfig struct {
	// Path of the cache database. Empty means the per-user default.
	Path string `mapstructure:"path"`
}

type StatusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Environment string         `mapstructure:"environment"`
	Monitor     MonitorConfig  `mapstructure:"monitor"`
	Health      HealthConfig   `mapstructure:"health"`
	Fetch       FetchConfig    `mapstructure:"fetch"`
	Registry    RegistryConfig `mapstructure:"registry"`
	Tracker     TrackerConfig  `mapstructure:"tracker"`
	Cache       CacheConfig    `mapstructure:"cache"`
	Status      StatusConfig   `mapstructure:"status"`
	Logging     LoggingConfig  `mapstructure:"logging"`
}

func Load() (*Config, error) {
	viper.SetDefault("environment", EnvDev)
	viper.SetDefault("monitor.period", "24h")
	viper.SetDefault("monitor.check_interval", "30m")
	viper.SetDefault("monitor.initial_check_delay", "30s")
	viper.SetDefault("monitor.tick", "100ms")
	viper.SetDefault("health.freshness_target", "6h")
	viper.SetDefault("health.staleness_limit", "72h")
	viper.SetDefault("health.authority_grace_period", "12h")
	viper.SetDefault("health.fail_window", "72h")
	viper.SetDefault("fetch.timeout", "120s")
	viper.SetDefault("fetch.user_agent", "Debian APT-HTTP/1.3 (0.0.0+really-mirror-minder)")
	viper.SetDefault("registry.tools_repo", "termux-tools")
	viper.SetDefault("registry.tools_repo_url", "https://github.com/termux/termux-tools")
	viper.SetDefault("registry.mirror_dir", "mirrors")
	viper.SetDefault("registry.authority_prefix", "https://packages.termux.dev")
	viper.SetDefault("tracker.repo", "https://github.com/termux/termux-tools")
	viper.SetDefault("tracker.auto_close", false)
	viper.SetDefault("status.enabled", true)
	viper.SetDefault("status.address", ":8673")
	viper.SetDefault("logging.level", LogLevelInfo)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Info("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Environment,
			validation.Required,
			validation.In(EnvDev, EnvStaging, EnvProd),
		),
		validation.Field(&c.Monitor,
			validation.Required,
			validation.By(func(value interface{}) error {
				mc, ok := value.(MonitorConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a MonitorConfig")
				}
				return validation.ValidateStruct(&mc,
					validation.Field(&mc.Period, validation.Required, validation.By(validateDuration)),
					validation.Field(&mc.CheckInterval, validation.Required, validation.By(validateDuration)),
					validation.Field(&mc.InitialCheckDelay, validation.Required, validation.By(validateDuration)),
					validation.Field(&mc.Tick, validation.Required, validation.By(validateDuration)),
				)
			}),
		),
		validation.Field(&c.Health,
			validation.Required,
			validation.By(func(value interface{}) error {
				hc, ok := value.(HealthConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a HealthConfig")
				}
				return validation.ValidateStruct(&hc,
					validation.Field(&hc.FreshnessTarget, validation.Required, validation.By(validateDuration)),
					validation.Field(&hc.StalenessLimit, validation.Required, validation.By(validateDuration)),
					validation.Field(&hc.AuthorityGracePeriod, validation.Required, validation.By(validateDuration)),
					validation.Field(&hc.FailWindow, validation.Required, validation.By(validateDuration)),
				)
			}),
		),
		validation.Field(&c.Fetch,
			validation.Required,
			validation.By(func(value interface{}) error {
				fc, ok := value.(FetchConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a FetchConfig")
				}
				return validation.ValidateStruct(&fc,
					validation.Field(&fc.Timeout, validation.Required, validation.By(validateDuration)),
					validation.Field(&fc.UserAgent, validation.Required),
				)
			}),
		),
		validation.Field(&c.Registry,
			validation.Required,
			validation.By(func(value interface{}) error {
				rc, ok := value.(RegistryConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a RegistryConfig")
				}
				return validation.ValidateStruct(&rc,
					validation.Field(&rc.ToolsRepo, validation.Required),
					validation.Field(&rc.ToolsRepoURL, validation.Required, validation.By(validateServerURL)),
					validation.Field(&rc.MirrorDir, validation.Required),
					validation.Field(&rc.AuthorityPrefix, validation.Required, validation.By(validateServerURL)),
				)
			}),
		),
		validation.Field(&c.Tracker,
			validation.Required,
			validation.By(func(value interface{}) error {
				tc, ok := value.(TrackerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a TrackerConfig")
				}
				return validation.ValidateStruct(&tc,
					validation.Field(&tc.Repo, validation.Required, validation.By(validateServerURL)),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
	)
}

// FailLimit is the consecutive-failure count at which a mirror is reported
// unhealthy: the number of check intervals that fit in the fail window,
// rounded. Call only on a validated Config.
func (c *Config) FailLimit() int {
	window := mustDuration(c.Health.FailWindow)
	interval := mustDuration(c.Monitor.CheckInterval)
	return int(math.Round(float64(window) / float64(interval)))
}

// Duration accessors below assume a validated Config.

func (c MonitorConfig) PeriodDuration() time.Duration       { return mustDuration(c.Period) }
func (c MonitorConfig) IntervalDuration() time.Duration     { return mustDuration(c.CheckInterval) }
func (c MonitorConfig) InitialDelayDuration() time.Duration { return mustDuration(c.InitialCheckDelay) }
func (c MonitorConfig) TickDuration() time.Duration         { return mustDuration(c.Tick) }

func (c HealthConfig) FreshnessTargetDuration() time.Duration { return mustDuration(c.FreshnessTarget) }
func (c HealthConfig) StalenessLimitDuration() time.Duration  { return mustDuration(c.StalenessLimit) }
func (c HealthConfig) GracePeriodDuration() time.Duration {
	return mustDuration(c.AuthorityGracePeriod)
}

func (c FetchConfig) TimeoutDuration() time.Duration { return mustDuration(c.Timeout) }

func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(err)
	}
	return d
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if _, err := time.ParseDuration(durationStr); err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	return nil
}

func validateServerURL(value interface{}) error {
	serverURL, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if serverURL == "" {
		return validation.NewError("validation_empty_url", "URL cannot be empty")
	}

	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}
