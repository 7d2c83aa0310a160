// Package config loads runtime configuration from flags, environment
// variables (EBZ_ prefix) and an optional ebenezer.yaml file, in that
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config is the resolved runtime configuration.
type Config struct {
	// StoreDSN locates the remote row store. postgres:// selects the
	// Postgres backend; libsql:// or a file path selects libSQL.
	StoreDSN string `mapstructure:"store_dsn"`

	// Listen is the HTTP API address.
	Listen string `mapstructure:"listen"`

	// DataDir holds the local mirror database and related state.
	DataDir string `mapstructure:"data_dir"`

	// Debounce is the sync quiet period.
	Debounce time.Duration `mapstructure:"debounce"`

	// LogFile, when set, adds a size-rotated file sink to all loggers.
	LogFile string `mapstructure:"log_file"`

	AI AIConfig `mapstructure:"ai"`
}

// AIConfig credentials the report text generation.
type AIConfig struct {
	Provider string `mapstructure:"provider"` // gemini (default) or anthropic
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
}

// Load resolves configuration. v carries any flag bindings made by the CLI;
// pass nil to load from environment and file only.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	v.SetEnvPrefix("EBZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store_dsn", "")
	v.SetDefault("listen", ":8822")
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("debounce", time.Second)
	v.SetDefault("ai.provider", "gemini")
	// Defaults register the keys so AutomaticEnv can see EBZ_AI_API_KEY
	// and friends during Unmarshal.
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "")
	v.SetDefault("log_file", "")

	v.SetConfigName("ebenezer")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "ebenezer"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if cfg.StoreDSN == "" {
		// A fresh checkout works out of the box against an embedded file.
		cfg.StoreDSN = "file:" + filepath.Join(cfg.DataDir, "store.db")
	}
	return &cfg, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ebenezer"
	}
	return filepath.Join(home, ".ebenezer")
}

// NewLogger builds a component logger writing to stderr and, when
// configured, a rotating log file.
func (c *Config) NewLogger(prefix string) *log.Logger {
	var w io.Writer = os.Stderr
	if c.LogFile != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   c.LogFile,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	}
	return log.New(w, prefix, log.LstdFlags)
}

// MirrorPath locates the local cache database.
func (c *Config) MirrorPath() string {
	return filepath.Join(c.DataDir, "mirror.db")
}
