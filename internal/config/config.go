// Package config loads service and CLI settings from an optional .env file,
// an optional YAML file and SOCIAL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/dhawalhost/sociallogin/internal/events"
	"github.com/dhawalhost/sociallogin/internal/social"
	"github.com/dhawalhost/sociallogin/internal/social/facebook"
	"github.com/dhawalhost/sociallogin/internal/social/google"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SOCIAL"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Log      LogConfig       `mapstructure:"log"`
	Database DatabaseConfig  `mapstructure:"database"`
	Tracing  TracingConfig   `mapstructure:"tracing"`
	Webhooks []events.Target `mapstructure:"webhooks" validate:"dive"`
	Facebook FacebookConfig  `mapstructure:"facebook"`
	Google   GoogleConfig    `mapstructure:"google"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr" validate:"required"`
	PublicURL    string        `mapstructure:"public_url" validate:"required,url"` // root of the provider redirect URLs
	LoginTimeout time.Duration `mapstructure:"login_timeout" validate:"gt=0"`
	RateLimit    float64       `mapstructure:"rate_limit" validate:"gte=0"`
	Burst        int           `mapstructure:"burst" validate:"gte=0"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
	AdminToken   string        `mapstructure:"admin_token" validate:"omitempty,min=16"` // bearer token for the audit API
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=json console"`
}

// DatabaseConfig holds the audit database settings. An empty DSN disables
// the audit log.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	ServiceName  string  `mapstructure:"service_name"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	Environment  string  `mapstructure:"environment"`
	Insecure     bool    `mapstructure:"insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
}

// FacebookConfig holds the Facebook app settings.
type FacebookConfig struct {
	AppID         string `mapstructure:"app_id"`
	AppSecret     string `mapstructure:"app_secret" validate:"required_with=AppID"`
	GraphVersion  string `mapstructure:"graph_version"`
	ClearSession  bool   `mapstructure:"clear_session"`
	LoginBehavior string `mapstructure:"login_behavior" validate:"omitempty,oneof=browser web native"`
}

// GoogleConfig holds the Google client settings.
type GoogleConfig struct {
	ClientID                string   `mapstructure:"client_id"`
	ClientSecret            string   `mapstructure:"client_secret"`
	ShouldFetchBasicProfile bool     `mapstructure:"should_fetch_basic_profile"`
	Scopes                  []string `mapstructure:"scopes"`
	ServerClientID          string   `mapstructure:"server_client_id"`
	IsRequestAuthCode       bool     `mapstructure:"is_request_auth_code"`
}

var defaults = map[string]interface{}{
	"server.addr":                       ":8080",
	"server.public_url":                 "http://localhost:8080",
	"server.login_timeout":              "5m",
	"server.rate_limit":                 5.0,
	"server.burst":                      10,
	"server.cors_origins":               []string{},
	"server.admin_token":                "",
	"log.level":                         "info",
	"log.format":                        "json",
	"database.dsn":                      "",
	"tracing.service_name":              "socialsvc",
	"tracing.otlp_endpoint":             "",
	"tracing.environment":               "development",
	"tracing.insecure":                  true,
	"tracing.sample_ratio":              1.0,
	"facebook.app_id":                   "",
	"facebook.app_secret":               "",
	"facebook.graph_version":            "v18.0",
	"facebook.clear_session":            false,
	"facebook.login_behavior":           "browser",
	"google.client_id":                  "",
	"google.client_secret":              "",
	"google.should_fetch_basic_profile": true,
	"google.scopes":                     []string{},
	"google.server_client_id":           "",
	"google.is_request_auth_code":       false,
}

// Load reads the configuration. envFile and path are optional; a missing
// .env file is not an error.
func Load(envFile, path string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Social returns the adapter configuration. A provider is only configured
// when its credentials are set.
func (c *Config) Social() social.Config {
	var sc social.Config
	if c.Facebook.AppID != "" {
		sc.Facebook = &social.FacebookConfig{
			ClearSession:  c.Facebook.ClearSession,
			LoginBehavior: social.LoginBehavior(c.Facebook.LoginBehavior),
		}
	}
	if c.Google.ClientID != "" {
		sc.Google = &social.GoogleConfig{
			ShouldFetchBasicProfile: c.Google.ShouldFetchBasicProfile,
			Scopes:                  c.Google.Scopes,
			ServerClientID:          c.Google.ServerClientID,
			IsRequestAuthCode:       c.Google.IsRequestAuthCode,
		}
	}
	return sc
}

// FacebookClient returns the Facebook login manager settings.
func (c *Config) FacebookClient() facebook.Config {
	return facebook.Config{
		AppID:        c.Facebook.AppID,
		AppSecret:    c.Facebook.AppSecret,
		GraphVersion: c.Facebook.GraphVersion,
	}
}

// GoogleClient returns the Google sign-in settings.
func (c *Config) GoogleClient() google.Config {
	return google.Config{
		ClientID:     c.Google.ClientID,
		ClientSecret: c.Google.ClientSecret,
	}
}
