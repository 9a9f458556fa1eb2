package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"danmaku-overlay/internal/danmaku"
)

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvFloat is GetEnvInt for floating point values.
func GetEnvFloat(key string, fallback float64) float64 {
	if s := os.Getenv(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return fallback
}

// Engine holds the overlay tunables read from the YAML options file.
// Zero fields mean "use the engine default". LineMargin is a pointer because
// zero is a legal margin.
type Engine struct {
	FontSize      int           `yaml:"font_size"`
	LineSpacing   float64       `yaml:"line_spacing"`
	LineMargin    *float64      `yaml:"line_margin"`
	Speed         float64       `yaml:"speed"`
	TickInterval  time.Duration `yaml:"tick_interval"`
	Tolerance     float64       `yaml:"tolerance"`
	FixedDuration float64       `yaml:"fixed_duration"`
	Width         float64       `yaml:"width"`
	Height        float64       `yaml:"height"`
}

// Overlay size used for sessions that do not specify one.
const (
	DefaultWidth  = 1280
	DefaultHeight = 720
)

// LoadEngine reads engine options from the YAML file at path, then applies
// DANMAKU_FONT_SIZE, DANMAKU_LINE_MARGIN and DANMAKU_SPEED overrides. An
// empty path or a missing file yields env overrides on top of zero values.
func LoadEngine(path string) (Engine, error) {
	var e Engine
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return e, fmt.Errorf("read engine config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &e); err != nil {
				return e, fmt.Errorf("parse engine config %s: %w", path, err)
			}
		}
	}

	e.FontSize = GetEnvInt("DANMAKU_FONT_SIZE", e.FontSize)
	if s := os.Getenv("DANMAKU_LINE_MARGIN"); s != "" {
		if m, err := strconv.ParseFloat(s, 64); err == nil {
			e.LineMargin = &m
		}
	}
	e.Speed = GetEnvFloat("DANMAKU_SPEED", e.Speed)
	if e.Width <= 0 {
		e.Width = DefaultWidth
	}
	if e.Height <= 0 {
		e.Height = DefaultHeight
	}
	return e, nil
}

// Options converts the file values to engine options. Unset fields are left
// for the engine to default, except LineMargin which defaults here.
func (e Engine) Options() danmaku.Options {
	opts := danmaku.Options{
		FontSize:      e.FontSize,
		LineSpacing:   e.LineSpacing,
		LineMargin:    danmaku.DefaultLineMargin,
		Speed:         e.Speed,
		TickInterval:  e.TickInterval,
		Tolerance:     e.Tolerance,
		FixedDuration: e.FixedDuration,
	}
	if e.LineMargin != nil {
		opts.LineMargin = *e.LineMargin
	}
	return opts
}
