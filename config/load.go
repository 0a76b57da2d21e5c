package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cameronmore/go-weather/env"
)

// setting binds one key to its environment variables and flag.
type setting struct {
	envs  []string
	flag  string
	usage string
	set   func(c *Config, v string) error
}

func stringSetting(envs []string, flagName, usage string, field func(c *Config) *string) setting {
	return setting{envs: envs, flag: flagName, usage: usage, set: func(c *Config, v string) error {
		*field(c) = v
		return nil
	}}
}

func durationSetting(envs []string, flagName, usage string, field func(c *Config) *time.Duration) setting {
	return setting{envs: envs, flag: flagName, usage: usage, set: func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envs[0], err)
		}
		*field(c) = d
		return nil
	}}
}

// Later environment names in envs win over earlier ones.
var settings = []setting{
	{envs: []string{"PORT"}, flag: "port", usage: "HTTP listen port", set: func(c *Config, v string) error {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Port = p
		return nil
	}},
	stringSetting([]string{"NODE_ENV", "ENVIRONMENT"}, "environment", "development, production or test",
		func(c *Config) *string { return &c.Environment }),
	stringSetting([]string{"DATABASE_DRIVER"}, "database-driver", "sqlite3 or postgres",
		func(c *Config) *string { return &c.DatabaseDriver }),
	stringSetting([]string{"DATABASE_URL"}, "database-url", "SQLite file path or PostgreSQL DSN",
		func(c *Config) *string { return &c.DatabaseURL }),
	stringSetting([]string{"SESSION_SECRET"}, "", "",
		func(c *Config) *string { return &c.SessionSecret }),
	durationSetting([]string{"SESSION_TTL"}, "session-ttl", "session lifetime",
		func(c *Config) *time.Duration { return &c.SessionTTL }),
	stringSetting([]string{"FRONTEND_URL"}, "frontend-url", "origin allowed by CORS",
		func(c *Config) *string { return &c.FrontendURL }),
	stringSetting([]string{"OPENWEATHER_API_KEY"}, "", "",
		func(c *Config) *string { return &c.OpenWeatherAPIKey }),
	stringSetting([]string{"OPENWEATHER_BASE_URL"}, "openweather-base-url", "OpenWeatherMap API base URL",
		func(c *Config) *string { return &c.OpenWeatherBaseURL }),
	durationSetting([]string{"WEATHER_TIMEOUT"}, "weather-timeout", "upstream weather request timeout",
		func(c *Config) *time.Duration { return &c.WeatherTimeout }),
	stringSetting([]string{"STATIC_DIR"}, "static-dir", "built frontend served in production",
		func(c *Config) *string { return &c.StaticDir }),
	stringSetting([]string{"LOG_LEVEL"}, "log-level", "debug, info, warn or error",
		func(c *Config) *string { return &c.LogLevel }),
	stringSetting([]string{"LOG_FORMAT"}, "log-format", "text or json",
		func(c *Config) *string { return &c.LogFormat }),
}

// Load builds the server Config from args (without the program name).
// Secrets are only read from files and the environment, never from flags.
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("weatherd", flag.ContinueOnError)
	configFile := fs.String("config", "", "YAML configuration file")
	envFile := fs.String("env-file", ".env", ".env file to load if present")

	byFlag := make(map[string]setting)
	for _, s := range settings {
		if s.flag == "" {
			continue
		}
		fs.String(s.flag, "", s.usage)
		byFlag[s.flag] = s
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Defaults()

	dotenv, err := env.ProcessEnv(*envFile)
	if err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load env file %s: %w", *envFile, err)
	}
	if err := applyEnv(&cfg, func(key string) (string, bool) {
		v, ok := dotenv[key]
		return v, ok && v != ""
	}); err != nil {
		return Config{}, err
	}
	if *configFile != "" {
		if err := loadYAML(*configFile, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, lookupNonEmpty); err != nil {
		return Config{}, err
	}

	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		s, ok := byFlag[f.Name]
		if !ok {
			return
		}
		if err := s.set(&cfg, f.Value.String()); err != nil {
			flagErr = errors.Join(flagErr, fmt.Errorf("-%s: %w", f.Name, err))
		}
	})
	if flagErr != nil {
		return Config{}, flagErr
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for _, s := range settings {
		for _, name := range s.envs {
			v, ok := lookup(name)
			if !ok {
				continue
			}
			if err := s.set(cfg, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// loadYAML overlays the keys present in the file onto cfg. Unknown keys are
// rejected.
func loadYAML(path string, cfg *Config) error {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// LoadClient builds the terminal client's settings from args and the
// WEATHER_SERVER variable, read from the environment or ./.env.
func LoadClient(args []string) (ClientConfig, error) {
	if err := env.Load(".env"); err != nil {
		return ClientConfig{}, err
	}
	cfg := ClientConfig{ServerURL: DefaultServerURL}
	if v, ok := lookupNonEmpty("WEATHER_SERVER"); ok {
		cfg.ServerURL = v
	}

	fs := flag.NewFlagSet("weather", flag.ContinueOnError)
	fs.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "weather server base URL")
	if err := fs.Parse(args); err != nil {
		return ClientConfig{}, err
	}
	if cfg.ServerURL == "" {
		return ClientConfig{}, errors.New("server URL is required")
	}
	return cfg, nil
}
