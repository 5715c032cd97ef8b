package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/astro-web3/ts43-entitlement/internal/infra/certsource"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Addr         string        `mapstructure:"addr"`
		Mode         string        `mapstructure:"mode"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
	} `mapstructure:"server"`

	Redis struct {
		Enabled  bool   `mapstructure:"enabled"`
		URL      string `mapstructure:"url"`
		PoolSize int    `mapstructure:"pool_size"`
	} `mapstructure:"redis"`

	Entitlement struct {
		SIMGatewayURL string `mapstructure:"sim_gateway_url"`
	} `mapstructure:"entitlement"`

	Auth struct {
		AllowedCertificates []string      `mapstructure:"allowed_certificates"`
		AppendShaToAppName  bool          `mapstructure:"append_sha_to_app_name"`
		OverrideAppName     string        `mapstructure:"override_app_name"`
		CacheTTL            time.Duration `mapstructure:"cache_ttl"`

		Packages []certsource.Package `mapstructure:"packages"`
		Callers  []certsource.Caller  `mapstructure:"callers"`
	} `mapstructure:"auth"`

	Observability struct {
		TraceEnabled       bool   `mapstructure:"trace_enabled"`
		TracingEndpointURL string `mapstructure:"tracing_endpoint_url"`
		LogLevel           string `mapstructure:"log_level"`
		Format             string `mapstructure:"log_format"`
		LogSource          bool   `mapstructure:"log_source"`
	} `mapstructure:"observability"`
}

func MustLoad() *Config {
	v := viper.New()

	logger := slog.Default()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvPrefix("TS43_ENTITLEMENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		logger.Error("Failed to read config", slog.Any("error", err))
		os.Exit(1)
	}

	if env := os.Getenv("APP_ENV"); env != "" {
		v.SetConfigName(fmt.Sprintf("config.%s", env))
		if err := v.MergeInConfig(); err != nil {
			logger.Info("No environment-specific config (optional)", slog.String("env", env))
		}
		logger.Info("Environment-specific config loaded", slog.String("env", env))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		logger.Error("Failed to unmarshal config", slog.Any("error", err))
		os.Exit(1)
	}

	return &cfg
}
