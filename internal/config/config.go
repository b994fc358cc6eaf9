// Package config loads facewatch settings from defaults, an optional YAML
// file, FACEWATCH_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. FACEWATCH_THRESHOLD.
const EnvPrefix = "FACEWATCH"

const (
	SourceDir = "dir"
	SourceDB  = "db"
)

// Config is the full application configuration.
type Config struct {
	FacesDir      string    `mapstructure:"faces_dir"`
	ModelsDir     string    `mapstructure:"models_dir"`
	Device        int       `mapstructure:"device"`
	Threshold     float64   `mapstructure:"threshold"`
	Scale         float64   `mapstructure:"scale"`
	Window        string    `mapstructure:"window"`
	QuitKey       string    `mapstructure:"quit_key"`
	GallerySource string    `mapstructure:"gallery_source"`
	NoProgress    bool      `mapstructure:"no_progress"`
	Log           LogConfig `mapstructure:"log"`
	DB            DBConfig  `mapstructure:"db"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// DBConfig holds the gallery database settings.
type DBConfig struct {
	URL string `mapstructure:"url"`
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"faces":          "faces_dir",
	"models":         "models_dir",
	"device":         "device",
	"threshold":      "threshold",
	"scale":          "scale",
	"window":         "window",
	"gallery-source": "gallery_source",
	"no-progress":    "no_progress",
	"log-level":      "log.level",
	"log-file":       "log.file",
	"db":             "db.url",
}

// Load builds the configuration. configPath may be empty. Flags that exist in
// flags take precedence over every other source when set explicitly.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			log.Warnf("Config file %s does not exist, using defaults", configPath)
		} else {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			log.Debugf("Config loaded from %s", configPath)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.DB.URL == "" {
		cfg.DB.URL = postgresURLFromEnv()
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("faces_dir", "faces")
	v.SetDefault("models_dir", ".")
	v.SetDefault("device", 0)
	v.SetDefault("threshold", 0.6)
	v.SetDefault("scale", 0.25)
	v.SetDefault("window", "Face Recognition")
	v.SetDefault("quit_key", "q")
	v.SetDefault("gallery_source", SourceDir)
	v.SetDefault("no_progress", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)

	v.SetDefault("db.url", "")
}

// postgresURLFromEnv builds a connection string from the standard POSTGRES_*
// variables, falling back to a local default.
func postgresURLFromEnv() string {
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		return "postgres://localhost:5432/facewatch"
	}
	port := os.Getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		os.Getenv("POSTGRES_USER"), os.Getenv("POSTGRES_PASSWORD"), host, port, os.Getenv("POSTGRES_DB"))
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Threshold <= 0 || c.Threshold >= 1 {
		errs = append(errs, fmt.Errorf("threshold must be in (0, 1), got %v", c.Threshold))
	}
	if c.Scale <= 0 || c.Scale > 1 {
		errs = append(errs, fmt.Errorf("scale must be in (0, 1], got %v", c.Scale))
	} else if inv := 1 / c.Scale; math.Abs(inv-math.Round(inv)) > 1e-6 {
		errs = append(errs, fmt.Errorf("scale must be 1/n for a whole n, got %v", c.Scale))
	}
	if c.Device < 0 {
		errs = append(errs, fmt.Errorf("device must not be negative, got %d", c.Device))
	}
	if utf8.RuneCountInString(c.QuitKey) != 1 {
		errs = append(errs, fmt.Errorf("quit_key must be a single character, got %q", c.QuitKey))
	}
	if c.GallerySource != SourceDir && c.GallerySource != SourceDB {
		errs = append(errs, fmt.Errorf("gallery_source must be %q or %q, got %q", SourceDir, SourceDB, c.GallerySource))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// Upscale is the whole factor that maps downscaled boxes back to frame size.
func (c *Config) Upscale() int {
	return int(math.Round(1 / c.Scale))
}

// QuitRune returns the quit key as a rune.
func (c *Config) QuitRune() rune {
	r, _ := utf8.DecodeRuneInString(c.QuitKey)
	return r
}
