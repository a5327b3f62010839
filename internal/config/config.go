// Package config loads service configuration from an optional YAML file,
// TRYON_ environment variables and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/ayusman/tryon/internal/overlay"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "TRYON"

// Config is the top-level service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	DB       DBConfig       `mapstructure:"db"`
	Log      LogConfig      `mapstructure:"log"`
	Camera   CameraConfig   `mapstructure:"camera"`
	Detector DetectorConfig `mapstructure:"detector"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Overlay  OverlayConfig  `mapstructure:"overlay"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Tray     TrayConfig     `mapstructure:"tray"`
}

type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	StaticDir string `mapstructure:"static_dir"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type CameraConfig struct {
	Device int `mapstructure:"device"`
	FPS    int `mapstructure:"fps"`
}

type DetectorConfig struct {
	Backend string `mapstructure:"backend"`
}

type PipelineConfig struct {
	PeriodMs        int     `mapstructure:"period_ms"`
	MotionThreshold float64 `mapstructure:"motion_threshold"`
}

// OverlayConfig holds the reference constants of the overlay transform.
type OverlayConfig struct {
	BaselineEyeDistance float64 `mapstructure:"baseline_eye_distance"`
	ScaleX              float64 `mapstructure:"scale_x"`
	ScaleY              float64 `mapstructure:"scale_y"`
	OffsetX             float64 `mapstructure:"offset_x"`
	OffsetY             float64 `mapstructure:"offset_y"`
	Depth               float64 `mapstructure:"depth"`
}

type IngestConfig struct {
	Rate  float64 `mapstructure:"rate"`
	Burst int     `mapstructure:"burst"`
}

type TrayConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Params returns the overlay parameters described by the config.
func (c *Config) Params() overlay.Params {
	return overlay.Params{
		BaselineEyeDistance: c.Overlay.BaselineEyeDistance,
		ScaleX:              c.Overlay.ScaleX,
		ScaleY:              c.Overlay.ScaleY,
		OffsetX:             c.Overlay.OffsetX,
		OffsetY:             c.Overlay.OffsetY,
		Depth:               c.Overlay.Depth,
	}
}

// Period returns the detection cycle period.
func (c *Config) Period() time.Duration {
	return time.Duration(c.Pipeline.PeriodMs) * time.Millisecond
}

// Validate checks values that cannot be defaulted at use.
func (c *Config) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return err
	}
	if c.Pipeline.PeriodMs <= 0 {
		return fmt.Errorf("pipeline.period_ms must be positive, got %d", c.Pipeline.PeriodMs)
	}
	if c.Pipeline.MotionThreshold < 0 {
		return fmt.Errorf("pipeline.motion_threshold must not be negative, got %f", c.Pipeline.MotionThreshold)
	}
	switch c.Detector.Backend {
	case "mediapipe", "mock":
	default:
		return fmt.Errorf("unknown detector.backend %q", c.Detector.Backend)
	}
	if c.Ingest.Rate <= 0 || c.Ingest.Burst <= 0 {
		return fmt.Errorf("ingest.rate and ingest.burst must be positive")
	}
	return nil
}

// DataDir returns the default directory for the database and logs.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tryon"
	}
	return filepath.Join(home, ".tryon")
}

// NewViper returns a viper instance with defaults and environment overrides
// set, ready for flag binding.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads configPath into v when it is set and decodes the result.
// A missing file is not an error.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			log.Warnf("Config file %s does not exist, using defaults", configPath)
		} else {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			log.Infof("Config loaded from %s", configPath)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// EnsureDirectories creates the parent directories of the database and log file.
func EnsureDirectories(cfg *Config) error {
	for _, f := range []string{cfg.DB.Path, cfg.Log.File} {
		if f == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(f), 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", f, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	dataDir := DataDir()
	p := overlay.DefaultParams()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.static_dir", "")

	v.SetDefault("db.path", filepath.Join(dataDir, "tryon.db"))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("camera.device", 0)
	v.SetDefault("camera.fps", 10)

	v.SetDefault("detector.backend", "mediapipe")

	v.SetDefault("pipeline.period_ms", 120)
	v.SetDefault("pipeline.motion_threshold", 0.0)

	v.SetDefault("overlay.baseline_eye_distance", p.BaselineEyeDistance)
	v.SetDefault("overlay.scale_x", p.ScaleX)
	v.SetDefault("overlay.scale_y", p.ScaleY)
	v.SetDefault("overlay.offset_x", p.OffsetX)
	v.SetDefault("overlay.offset_y", p.OffsetY)
	v.SetDefault("overlay.depth", p.Depth)

	v.SetDefault("ingest.rate", 20.0)
	v.SetDefault("ingest.burst", 5)

	v.SetDefault("tray.enabled", false)
}
