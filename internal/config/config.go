package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/pbar1/ssh-benchmark/internal/topology"
)

// EnvPrefix is prepended to every environment variable the generator reads.
const EnvPrefix = "MANIFESTGEN"

// Config holds all application configuration
type Config struct {
	// Logging configuration
	LogLevel  string `mapstructure:"logLevel"`
	LogFormat string `mapstructure:"logFormat"`

	// Render service configuration (serve only)
	HTTPHost string `mapstructure:"httpHost"`
	HTTPPort string `mapstructure:"httpPort"`

	// Bundle cache. Empty RedisURL disables caching.
	RedisURL string        `mapstructure:"redisURL"`
	CacheTTL time.Duration `mapstructure:"cacheTTL"`

	// Output configuration (generate only)
	OutputDir   string `mapstructure:"outputDir"`
	MetricsFile string `mapstructure:"metricsFile"`

	// Application metadata
	AppName    string `mapstructure:"appName"`
	AppVersion string `mapstructure:"appVersion"`

	// Scale is populated with the defaults of its strategy before user values are applied.
	Scale topology.ScaleConfiguration `mapstructure:"scale"`
}

var defaults = map[string]interface{}{
	"logLevel":       "info",
	"logFormat":      "json",
	"httpHost":       "0.0.0.0",
	"httpPort":       "8080",
	"redisURL":       "",
	"cacheTTL":       "10m",
	"outputDir":      "manifests",
	"metricsFile":    "",
	"appName":        "manifestgen",
	"appVersion":     "dev",
	"scale.strategy": string(topology.SingleContainer),
}

// scaleKeys are bound to the environment explicitly so they can be overridden without
// a config file, e.g. MANIFESTGEN_SCALE_REPLICAS=20.
var scaleKeys = []string{
	"scale.namespace",
	"scale.replicas",
	"scale.ports",
	"scale.containersPerReplica",
	"scale.concurrencyLevels",
	"scale.targets.ordinals",
	"scale.targets.ports",
	"scale.server.image",
	"scale.server.memory",
	"scale.client.image",
	"scale.client.memory",
	"scale.client.memoryBase",
	"scale.client.memoryPerConnection",
	"scale.client.limitRatio",
	"scale.client.observabilityPort",
	"scale.client.serviceType",
}

// listKeys replace their default instead of being merged into it.
var listKeys = map[string]func(*topology.ScaleConfiguration){
	"scale.concurrencyLevels": func(s *topology.ScaleConfiguration) { s.ConcurrencyLevels = nil },
	"scale.targets.ordinals":  func(s *topology.ScaleConfiguration) { s.Targets.Ordinals = nil },
	"scale.targets.ports":     func(s *topology.ScaleConfiguration) { s.Targets.Ports = nil },
}

// New returns a viper instance with the generator's defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range scaleKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// Load reads configuration from v, merging configFile when set. The scale strategy is
// resolved first so that every scale field not given explicitly takes that strategy's
// default.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	strategy, err := topology.ParseStrategy(v.GetString("scale.strategy"))
	if err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg := &Config{Scale: topology.DefaultScaleConfiguration(strategy)}
	for key, reset := range listKeys {
		if v.IsSet(key) {
			reset(&cfg.Scale)
		}
	}

	if err := v.Unmarshal(cfg, viper.DecodeHook(DecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.Scale.Strategy = strategy
	cfg.Scale.FitTargets(v.IsSet("scale.targets.ordinals"), v.IsSet("scale.targets.ports"))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// DecodeHook is viper's default hook chain plus resource.Quantity parsing.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		QuantityDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// Validate checks the ambient settings. Scale problems are reported by topology.Build.
func (c *Config) Validate() error {
	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug/info/warn/error)", c.LogLevel)
	}

	validLogFormats := map[string]bool{
		"json":    true,
		"console": true,
	}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("invalid log format: %s (must be json/console)", c.LogFormat)
	}

	if c.HTTPPort == "" {
		return fmt.Errorf("httpPort must not be empty")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("invalid cache TTL: %s (must not be negative)", c.CacheTTL)
	}

	return nil
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return c.HTTPHost + ":" + c.HTTPPort
}
