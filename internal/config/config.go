package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const maxRecentStores = 8

type Config struct {
	Store  StoreConfig
	Logger LoggerConfig

	// RecentStores is a most-recent-first list of store locations the user
	// has opened. Persisted back to the user config file via Save.
	RecentStores []string
}

type StoreConfig struct {
	// Backend selects the on-disk encoding: "json" or "sqlite".
	Backend string
	// Path is the default question store location (a .json file or a
	// SQLite database file depending on Backend).
	Path string
}

type LoggerConfig struct {
	Level string
	Env   string
}

// DefaultDir returns the user-level directory holding the config file and
// the default store location.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".satbank")
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Add config paths based on environment
	if os.Getenv("ENV") == "test" {
		viper.AddConfigPath("../../config")
		viper.AddConfigPath("../../")
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath(DefaultDir())
	}

	viper.SetDefault("store.backend", "json")
	viper.SetDefault("store.path", filepath.Join(DefaultDir(), "questions.json"))
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.env", "development")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, the defaults above apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config := &Config{
		Store: StoreConfig{
			Backend: viper.GetString("store.backend"),
			Path:    viper.GetString("store.path"),
		},
		Logger: LoggerConfig{
			Level: viper.GetString("logger.level"),
			Env:   viper.GetString("logger.env"),
		},
		RecentStores: viper.GetStringSlice("recent_stores"),
	}

	// Override with environment variables if set
	if backend := os.Getenv("SATBANK_BACKEND"); backend != "" {
		config.Store.Backend = backend
	}
	if path := os.Getenv("SATBANK_STORE_PATH"); path != "" {
		config.Store.Path = path
	}
	if level := os.Getenv("SATBANK_LOG_LEVEL"); level != "" {
		config.Logger.Level = level
	}

	return config, nil
}

// AddRecentStore moves path to the front of the recent-store list,
// dropping duplicates and truncating to a fixed size.
func (c *Config) AddRecentStore(path string) {
	recents := []string{path}
	for _, p := range c.RecentStores {
		if p != path {
			recents = append(recents, p)
		}
	}
	if len(recents) > maxRecentStores {
		recents = recents[:maxRecentStores]
	}
	c.RecentStores = recents
}

// Save persists the current configuration to the user config file.
func (c *Config) Save() error {
	dir := DefaultDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	viper.Set("store.backend", c.Store.Backend)
	viper.Set("store.path", c.Store.Path)
	viper.Set("logger.level", c.Logger.Level)
	viper.Set("logger.env", c.Logger.Env)
	viper.Set("recent_stores", c.RecentStores)
	if err := viper.WriteConfigAs(filepath.Join(dir, "config.yaml")); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
