// Package config handles configuration for the weather server and client:
// defaults, an optional .env file, an optional YAML file, the process
// environment and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cameronmore/go-weather/sessions"
	"github.com/cameronmore/go-weather/store"
	"github.com/cameronmore/go-weather/weather"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config holds runtime settings for the weather server.
type Config struct {
	Port               int           `yaml:"port"`
	Environment        string        `yaml:"environment"`
	DatabaseDriver     string        `yaml:"database_driver"`
	DatabaseURL        string        `yaml:"database_url"`
	SessionSecret      string        `yaml:"session_secret"`
	SessionTTL         time.Duration `yaml:"session_ttl"`
	FrontendURL        string        `yaml:"frontend_url"`
	OpenWeatherAPIKey  string        `yaml:"openweather_api_key"`
	OpenWeatherBaseURL string        `yaml:"openweather_base_url"`
	WeatherTimeout     time.Duration `yaml:"weather_timeout"`
	StaticDir          string        `yaml:"static_dir"`
	LogLevel           string        `yaml:"log_level"`
	LogFormat          string        `yaml:"log_format"`
}

// Defaults returns development settings. There is deliberately no default
// session secret.
func Defaults() Config {
	return Config{
		Port:               5000,
		Environment:        EnvDevelopment,
		DatabaseDriver:     store.DriverSQLite,
		DatabaseURL:        "weather.db",
		SessionTTL:         sessions.DefaultDuration,
		FrontendURL:        "http://localhost:3000",
		OpenWeatherBaseURL: weather.DefaultBaseURL,
		WeatherTimeout:     weather.DefaultTimeout,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func (c Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	switch c.Environment {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		errs = append(errs, fmt.Errorf("ENVIRONMENT must be %s, %s or %s, got %q",
			EnvDevelopment, EnvProduction, EnvTest, c.Environment))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	switch c.DatabaseDriver {
	case store.DriverSQLite, store.DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER must be %s or %s, got %q",
			store.DriverSQLite, store.DriverPostgres, c.DatabaseDriver))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.SessionSecret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required"))
	} else if len(c.SessionSecret) < sessions.MinSecretLength {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d bytes", sessions.MinSecretLength))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.WeatherTimeout <= 0 {
		errs = append(errs, errors.New("WEATHER_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// ClientConfig holds settings for the terminal client.
type ClientConfig struct {
	ServerURL string
}

const DefaultServerURL = "http://localhost:5000"

func lookupNonEmpty(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	return v, ok && v != ""
}
