// Package config loads scanner settings from a YAML file, an optional .env
// file and DOCSCAN_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/docscan-mcp/internal/editor"
	"github.com/ironsheep/docscan-mcp/internal/geometry"
	"github.com/ironsheep/docscan-mcp/internal/imaging"
)

// Environment variables that override file settings.
const (
	EnvConfig       = "DOCSCAN_CONFIG"
	EnvLogLevel     = "DOCSCAN_LOG_LEVEL"
	EnvSolver       = "DOCSCAN_SOLVER"
	EnvParallel     = "DOCSCAN_PARALLEL"
	EnvOCRLanguage  = "DOCSCAN_OCR_LANGUAGE"
	EnvOutputFormat = "DOCSCAN_OUTPUT_FORMAT"
)

// Solver names.
const (
	SolverDirect = "direct"
	SolverPower  = "power"
)

// Config holds every tunable of the scanner.
type Config struct {
	LogLevel string `yaml:"log_level"`

	// Solver is "direct" (8x8 elimination) or "power" (seeded power
	// iteration).
	Solver          string `yaml:"solver"`
	PowerIterations int    `yaml:"power_iterations"`
	Seed            int64  `yaml:"seed"`

	// Parallel splits warps by rows across goroutines.
	Parallel bool `yaml:"parallel"`

	Margin     int `yaml:"margin"`
	HandleSize int `yaml:"handle_size"`

	SizeMode       string `yaml:"size_mode"`
	OutputFormat   string `yaml:"output_format"`
	JPEGQuality    int    `yaml:"jpeg_quality"`
	PreviewMaxSide int    `yaml:"preview_max_side"`

	// MaxOutputPixels caps width*height of a rectified page.
	MaxOutputPixels int64 `yaml:"max_output_pixels"`

	OCRLanguage string `yaml:"ocr_language"`

	// MaxSessions caps concurrently open editor sessions; 0 is unlimited.
	MaxSessions int `yaml:"max_sessions"`

	// SessionTimeout closes sessions idle for longer than this, e.g. "30m";
	// 0 keeps them until confirmed or cancelled.
	SessionTimeout time.Duration `yaml:"session_timeout"`

	Overlay Overlay `yaml:"overlay"`
}

// Overlay configures the editor preview drawing. Colors are hex strings.
type Overlay struct {
	LineColor   string `yaml:"line_color"`
	HandleColor string `yaml:"handle_color"`
	LabelColor  string `yaml:"label_color"`
	LineWidth   int    `yaml:"line_width"`
	Labels      bool   `yaml:"labels"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		LogLevel:        "warn",
		Solver:          SolverDirect,
		PowerIterations: geometry.DefaultPowerIterations,
		Seed:            1,
		Parallel:        true,
		Margin:          editor.DefaultMargin,
		HandleSize:      editor.HandleSize,
		SizeMode:        string(imaging.SizeNatural),
		OutputFormat:    "png",
		JPEGQuality:     imaging.DefaultJPEGQuality,
		PreviewMaxSide:  1024,
		MaxOutputPixels: 1 << 26,
		OCRLanguage:     "eng",
		MaxSessions:     64,
		SessionTimeout:  30 * time.Minute,
		Overlay: Overlay{
			LineColor:   "#00c853",
			HandleColor: "#00c853",
			LabelColor:  "#ffffff",
			LineWidth:   2,
			Labels:      true,
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path falls back to $DOCSCAN_CONFIG; a
// missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		expanded, err := expandHome(path)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(expanded)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logrus.WithField("config_path", expanded).Info("Configuration file not found, using defaults")
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", expanded, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse YAML config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadEnvFiles loads KEY=value files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		expanded, err := expandHome(p)
		if err != nil {
			return err
		}
		if _, err := os.Stat(expanded); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(expanded); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", expanded, err)
		}
	}
	return nil
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvSolver); v != "" {
		c.Solver = v
	}
	if v := os.Getenv(EnvParallel); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvParallel, v, err)
		}
		c.Parallel = b
	}
	if v := os.Getenv(EnvOCRLanguage); v != "" {
		c.OCRLanguage = v
	}
	if v := os.Getenv(EnvOutputFormat); v != "" {
		c.OutputFormat = v
	}
	return nil
}

// Validate checks every field and normalizes names to lower case.
func (c *Config) Validate() error {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	c.Solver = strings.ToLower(strings.TrimSpace(c.Solver))
	switch c.Solver {
	case SolverDirect, SolverPower:
	default:
		return fmt.Errorf("solver must be %q or %q, got %q", SolverDirect, SolverPower, c.Solver)
	}
	if c.PowerIterations <= 0 {
		return fmt.Errorf("power_iterations must be positive, got %d", c.PowerIterations)
	}

	if c.Margin < 0 {
		return fmt.Errorf("margin must not be negative, got %d", c.Margin)
	}
	if c.HandleSize <= 0 {
		return fmt.Errorf("handle_size must be positive, got %d", c.HandleSize)
	}
	if _, err := imaging.ParseSizeMode(c.SizeMode); err != nil {
		return fmt.Errorf("size_mode: %w", err)
	}
	if _, err := imaging.ParseFormat(c.OutputFormat); err != nil {
		return fmt.Errorf("output_format: %w", err)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be within 1-100, got %d", c.JPEGQuality)
	}
	if c.PreviewMaxSide < 0 {
		return fmt.Errorf("preview_max_side must not be negative, got %d", c.PreviewMaxSide)
	}
	if c.MaxOutputPixels <= 0 {
		return fmt.Errorf("max_output_pixels must be positive, got %d", c.MaxOutputPixels)
	}
	if c.SessionTimeout < 0 {
		return fmt.Errorf("session_timeout must not be negative, got %s", c.SessionTimeout)
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("max_sessions must not be negative, got %d", c.MaxSessions)
	}
	if _, err := c.OverlayStyle(); err != nil {
		return fmt.Errorf("overlay: %w", err)
	}
	return nil
}

// Level returns the parsed log level, or warn if LogLevel is invalid.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.WarnLevel
	}
	return lvl
}

// NewSolver builds the homography solver. The power solver gets its own
// PRNG seeded from Seed so runs are reproducible.
func (c *Config) NewSolver() geometry.Solver {
	if c.Solver == SolverPower {
		return geometry.PowerIteration{
			Rand:       rand.New(rand.NewSource(c.Seed)),
			Iterations: c.PowerIterations,
		}
	}
	return geometry.Direct{}
}

// Warper returns a warper using NewSolver. Call it per warp: the power
// solver's PRNG is not safe for concurrent use.
func (c *Config) Warper() imaging.Warper {
	return imaging.Warper{
		Solver:    c.NewSolver(),
		Parallel:  c.Parallel,
		MaxPixels: c.MaxOutputPixels,
	}
}

// EditorOptions returns the session defaults for new editors.
func (c *Config) EditorOptions() editor.Options {
	margin := c.Margin
	if margin == 0 {
		margin = -1
	}
	return editor.Options{Margin: margin, HandleSize: c.HandleSize}
}

// OverlayStyle parses the overlay colors.
func (c *Config) OverlayStyle() (imaging.OverlayStyle, error) {
	style := imaging.DefaultOverlayStyle()
	var err error
	if style.LineColor, err = imaging.ParseColor(c.Overlay.LineColor); err != nil {
		return style, fmt.Errorf("line_color: %w", err)
	}
	if style.HandleColor, err = imaging.ParseColor(c.Overlay.HandleColor); err != nil {
		return style, fmt.Errorf("handle_color: %w", err)
	}
	if style.LabelColor, err = imaging.ParseColor(c.Overlay.LabelColor); err != nil {
		return style, fmt.Errorf("label_color: %w", err)
	}
	if c.Overlay.LineWidth > 0 {
		style.LineWidth = c.Overlay.LineWidth
	}
	style.HandleSize = c.HandleSize
	style.Labels = c.Overlay.Labels
	return style, nil
}
