// Package config loads import settings from defaults, an optional config
// file, SHPIMPORT_* environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dyuri/shpimport/internal/importer"
	"github.com/dyuri/shpimport/internal/mapper"
	"github.com/dyuri/shpimport/internal/model"
	"github.com/dyuri/shpimport/internal/style"
)

// Config holds the import settings. Style properties use the syntax
// "current", "field:NAME" or a literal value.
type Config struct {
	Layer          string // Destination layer, empty for the drawing's current layer
	LayerField     string // Attribute field naming the layer of each record
	Color          string
	LineType       string
	Width          string
	Label          string
	PointMode      string
	TrustPartTypes bool
	QueueSize      int
	Encoding       string
	Log            LogConfig
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Format string
}

// flag names bound to config keys
var flagKeys = map[string]string{
	"layer":            "layer",
	"layer-field":      "layer_field",
	"color":            "color",
	"linetype":         "linetype",
	"width":            "width",
	"label":            "label",
	"point-mode":       "point_mode",
	"trust-part-types": "trust_part_types",
	"queue-size":       "queue_size",
	"encoding":         "encoding",
	"log-level":        "log.level",
	"log-format":       "log.format",
}

// New returns a viper instance with defaults and environment binding
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SHPIMPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("layer", "")
	v.SetDefault("layer_field", "")
	v.SetDefault("color", "current")
	v.SetDefault("linetype", "current")
	v.SetDefault("width", "current")
	v.SetDefault("label", "")
	v.SetDefault("point_mode", "point")
	v.SetDefault("trust_part_types", false)
	v.SetDefault("queue_size", importer.DefaultQueueSize)
	v.SetDefault("encoding", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// BindFlags binds the flags of fs that have a config key. Flags missing
// from fs are ignored.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the optional config file and builds the Config. Without an
// explicit file, shpimport.{yaml,toml,json} is looked up in the working
// directory and $HOME/.shpimport; a missing file is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("shpimport")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.shpimport/")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		Layer:          v.GetString("layer"),
		LayerField:     v.GetString("layer_field"),
		Color:          v.GetString("color"),
		LineType:       v.GetString("linetype"),
		Width:          v.GetString("width"),
		Label:          v.GetString("label"),
		PointMode:      v.GetString("point_mode"),
		TrustPartTypes: v.GetBool("trust_part_types"),
		QueueSize:      v.GetInt("queue_size"),
		Encoding:       v.GetString("encoding"),
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}
	if cfg.QueueSize < 1 {
		return nil, fmt.Errorf("queue_size must be positive, got %d", cfg.QueueSize)
	}
	return cfg, nil
}

// StyleConfig parses the style settings
func (c *Config) StyleConfig() (style.Config, error) {
	var sc style.Config
	var err error

	if c.LayerField != "" {
		sc.Layer = style.FromField[string](c.LayerField)
	} else if c.Layer != "" {
		sc.Layer = style.Fixed(c.Layer)
	}
	if sc.Color, err = style.Parse(c.Color, model.ParseColor); err != nil {
		return sc, fmt.Errorf("color: %w", err)
	}
	if sc.LineType, err = style.Parse(c.LineType, parseLineType); err != nil {
		return sc, fmt.Errorf("linetype: %w", err)
	}
	if sc.Width, err = style.Parse(c.Width, style.ParseWidth); err != nil {
		return sc, fmt.Errorf("width: %w", err)
	}
	if sc.Label, err = style.Parse(c.Label, style.ParseText); err != nil {
		return sc, fmt.Errorf("label: %w", err)
	}
	return sc, nil
}

func parseLineType(s string) (string, error) {
	return style.LineTypeValue(model.TextValue(s))
}

// ImportOptions converts the settings into importer options. Logger and
// metrics are left for the caller.
func (c *Config) ImportOptions() (importer.Options, error) {
	sc, err := c.StyleConfig()
	if err != nil {
		return importer.Options{}, err
	}
	mode, err := mapper.ParsePointMode(c.PointMode)
	if err != nil {
		return importer.Options{}, err
	}
	return importer.Options{
		Style: sc,
		Mapping: mapper.Options{
			PointMode:      mode,
			TrustPartTypes: c.TrustPartTypes,
		},
		Layer:     c.Layer,
		Encoding:  c.Encoding,
		QueueSize: c.QueueSize,
	}, nil
}
