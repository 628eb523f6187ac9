package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPrefix             = "PODIUM"
	defaultHTTPAddress    = "0.0.0.0:8080"
	defaultDatabaseDriver = "postgres"
	defaultLogLevel       = "info"
)

// AppConfig captures runtime configuration shared by the API server and the admin commands.
type AppConfig struct {
	HTTPAddress    string
	DatabaseDriver string
	DatabaseDSN    string
	LogLevel       string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
// The connection descriptor is also read from DATABASE_URL.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()
	_ = configViper.BindEnv("database.dsn", envPrefix+"_DATABASE_DSN", "DATABASE_URL")

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("log.level", defaultLogLevel)
}

// LoadDotEnv populates the process environment from a dotenv file. A missing file is not
// an error; variables already set in the environment win.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:    configViper.GetString("http.address"),
		DatabaseDriver: strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabaseDSN:    strings.TrimSpace(configViper.GetString("database.dsn")),
		LogLevel:       configViper.GetString("log.level"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if c.DatabaseDSN == "" {
		return fmt.Errorf("database.dsn is required (set %s_DATABASE_DSN or DATABASE_URL)", envPrefix)
	}
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.DatabaseDriver)
	}
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	return nil
}
