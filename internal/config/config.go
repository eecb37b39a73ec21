// Package config loads farmzd's configuration from YAML or JSON. Defaults
// are filled in first and the file is layered on top, so a file only needs
// the keys it changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Format is a configuration file format.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

var (
	ErrEmptyPath         = errors.New("config: empty path")
	ErrUnsupportedFormat = errors.New("config: unsupported format")
	ErrLoadFailed        = errors.New("config: load failed")
	ErrParseFailed       = errors.New("config: parse failed")
	ErrInvalid           = errors.New("config: invalid")
)

// ReservedGroup is the group name farmzd uses for its own endpoints. The
// workload may not take it.
const ReservedGroup = "http"

// Config is the daemon configuration.
type Config struct {
	Listen          string        `koanf:"listen"`
	RefreshInterval time.Duration `koanf:"refresh_interval"`
	Namespace       string        `koanf:"namespace"`
	Log             Log           `koanf:"log"`
	Workload        Workload      `koanf:"workload"`
}

// Log configures the daemon logger.
type Log struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
	Compress   bool   `koanf:"compress"`
}

// Workload configures the synthetic worker pool. Workers set to 0 disables
// it.
type Workload struct {
	Group     string        `koanf:"group"`
	Workers   int           `koanf:"workers"`
	QueueSize int           `koanf:"queue_size"`
	Interval  time.Duration `koanf:"interval"`
	Recycle   int           `koanf:"recycle"`
	FailEvery int           `koanf:"fail_every"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen:          ":9464",
		RefreshInterval: 5 * time.Second,
		Namespace:       "farmz",
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Workload: Workload{
			Group:     "workload",
			Workers:   4,
			QueueSize: 100,
			Interval:  100 * time.Millisecond,
			Recycle:   500,
			FailEvery: 20,
		},
	}
}

// Load reads path, detecting the format from its extension.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, ErrEmptyPath
	}
	format, err := detectFormat(path)
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return Parse(data, format)
}

// Parse decodes data over Default and validates the result. Empty data
// yields the defaults.
func Parse(data []byte, format Format) (Config, error) {
	parser, err := parserFor(format)
	if err != nil {
		return Config{}, err
	}

	k := koanf.New(".")
	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), parser); err != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrParseFailed, err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	switch {
	case c.Listen == "":
		return fmt.Errorf("%w: listen is empty", ErrInvalid)
	case c.RefreshInterval <= 0:
		return fmt.Errorf("%w: refresh_interval must be positive, got %s", ErrInvalid, c.RefreshInterval)
	case c.Workload.Workers < 0:
		return fmt.Errorf("%w: workload.workers is negative", ErrInvalid)
	case c.Workload.Workers > 0 && c.Workload.QueueSize <= 0:
		return fmt.Errorf("%w: workload.queue_size must be positive", ErrInvalid)
	case c.Workload.Recycle < 0 || c.Workload.FailEvery < 0:
		return fmt.Errorf("%w: workload.recycle and workload.fail_every must not be negative", ErrInvalid)
	case c.Workload.Group == ReservedGroup:
		return fmt.Errorf("%w: workload.group %q is reserved", ErrInvalid, ReservedGroup)
	}
	return nil
}

func detectFormat(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %q", ErrUnsupportedFormat, ext)
	}
}

func parserFor(format Format) (koanf.Parser, error) {
	switch format {
	case FormatYAML:
		return yaml.Parser(), nil
	case FormatJSON:
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
