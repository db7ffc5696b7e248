package config

import (
	"io/fs"
	"strings"
	"time"
	_ "time/tzdata" // audit timezone must resolve on hosts without zoneinfo

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const envPrefix = "MARGIN"

// Config holds the application configuration.
type Config struct {
	// Server configuration
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level"`

	// Application configuration
	Environment string `mapstructure:"environment"`

	// AssetsFile YAML asset catalog; the built-in catalog is used when empty
	AssetsFile string `mapstructure:"assets_file"`

	Audit AuditConfig `mapstructure:"audit"`
	CORS  CORSConfig  `mapstructure:"cors"`
}

type AuditConfig struct {
	Timezone     string   `mapstructure:"timezone"`
	Buffer       int      `mapstructure:"buffer"`
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// Location resolves the audit timezone.
func (a AuditConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "audit timezone %q", a.Timezone)
	}
	return loc, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "localhost")
	v.SetDefault("port", 8000)
	v.SetDefault("log_level", "info")
	v.SetDefault("environment", "development")
	v.SetDefault("assets_file", "")
	v.SetDefault("audit.timezone", "Asia/Kolkata")
	v.SetDefault("audit.buffer", 1024)
	v.SetDefault("audit.kafka_brokers", []string{})
	v.SetDefault("audit.kafka_topic", "margin.audit")
	v.SetDefault("cors.allow_origins", []string{"http://localhost:3000"})
}

// Load builds the configuration from, in increasing priority: defaults,
// the optional config file, variables from envFile, and the environment
// (MARGIN_PORT, MARGIN_AUDIT_TIMEZONE, ...).
func Load(configFile, envFile string) (*Config, error) {
	if envFile != "" {
		// a missing env file is not an error, only an unreadable one
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(err, "load env file %s", envFile)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", configFile)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, errors.Errorf("invalid port %d", cfg.Port)
	}
	if _, err := cfg.Audit.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
