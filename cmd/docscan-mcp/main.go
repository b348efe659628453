package main

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/ironsheep/docscan-mcp/internal/config"
	"github.com/ironsheep/docscan-mcp/internal/editor"
	"github.com/ironsheep/docscan-mcp/internal/geometry"
	"github.com/ironsheep/docscan-mcp/internal/imaging"
	"github.com/ironsheep/docscan-mcp/internal/ocr"
	"github.com/ironsheep/docscan-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Logs go to stderr; stdout is the MCP channel.
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := config.LoadEnvFiles(".env"); err != nil {
		logger.WithError(err).Warn("Failed to load .env file")
	}

	app := &cli.App{
		Name:    "docscan-mcp",
		Usage:   "Perspective-correct photographed documents, as an MCP server or from the command line",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
				EnvVars: []string{config.EnvConfig},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error); overrides the configuration",
			},
		},
		Action: func(c *cli.Context) error {
			return serve(c, logger)
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Serve MCP over stdin/stdout (the default)",
				Action: func(c *cli.Context) error {
					return serve(c, logger)
				},
			},
			{
				Name:      "rectify",
				Usage:     "Rectify the page bounded by four corners and write it to a file",
				ArgsUsage: "<photo>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "corners",
						Usage:    "Eight numbers x0,y0,...,x3,y3 in order top-left, top-right, bottom-right, bottom-left",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "output",
						Aliases:  []string{"o"},
						Usage:    "Output file; the extension selects the format",
						Required: true,
					},
					&cli.IntFlag{Name: "width", Usage: "Output width in pixels"},
					&cli.IntFlag{Name: "height", Usage: "Output height in pixels"},
					&cli.StringFlag{
						Name:  "size-mode",
						Usage: "natural or auto, used when width and height are not given",
					},
					&cli.BoolFlag{Name: "ocr", Usage: "Print the recognized text of the page"},
				},
				Action: func(c *cli.Context) error {
					return rectify(c, logger)
				},
			},
			{
				Name:      "preview",
				Usage:     "Draw the corner overlay on a photo",
				ArgsUsage: "<photo>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "corners",
						Usage: "Eight numbers x0,y0,...,x3,y3 (default: inset from the image edges)",
					},
					&cli.StringFlag{
						Name:     "output",
						Aliases:  []string{"o"},
						Usage:    "Output file",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "max-side",
						Usage: "Shrink to fit this many pixels per side (default from config)",
						Value: -1,
					},
				},
				Action: func(c *cli.Context) error {
					return preview(c, logger)
				},
			},
			{
				Name:  "homography",
				Usage: "Print the homography mapping four source points onto four destination points",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "src", Usage: "Eight numbers x0,y0,...,x3,y3", Required: true},
					&cli.StringFlag{Name: "dst", Usage: "Eight numbers x0,y0,...,x3,y3", Required: true},
				},
				Action: func(c *cli.Context) error {
					return homography(c, logger)
				},
			},
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(c *cli.Context) error {
					fmt.Printf("docscan-mcp %s\n", Version)
					fmt.Printf("  Build time: %s\n", BuildTime)
					fmt.Printf("  Git commit: %s\n", GitCommit)
					info := ocr.GetInfo()
					switch {
					case info.Available:
						fmt.Printf("  OCR: %s %s\n", info.Backend, info.Version)
					case info.Error != "":
						fmt.Printf("  OCR: unavailable (%s)\n", info.Error)
					default:
						fmt.Println("  OCR: unavailable")
					}
					return nil
				},
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.WithError(err).Error("docscan-mcp failed")
		os.Exit(1)
	}
}

// loadConfig reads the configuration named by the global flags and applies
// its log level.
func loadConfig(c *cli.Context, logger *logrus.Logger) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	logger.SetLevel(cfg.Level())
	logrus.SetLevel(cfg.Level())
	return cfg, nil
}

func serve(c *cli.Context, logger *logrus.Logger) error {
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	srv, err := server.New(cfg, logger)
	if err != nil {
		return err
	}
	defer srv.Close()
	logger.WithFields(logrus.Fields{
		"version": Version,
		"commit":  GitCommit,
		"solver":  cfg.Solver,
	}).Info("Starting MCP server on stdio")
	return srv.Run()
}

func rectify(c *cli.Context, logger *logrus.Logger) error {
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	img, err := loadPhoto(c)
	if err != nil {
		return err
	}
	quad, err := parseQuad(c.String("corners"))
	if err != nil {
		return fmt.Errorf("--corners: %w", err)
	}

	w, h := c.Int("width"), c.Int("height")
	if w == 0 && h == 0 {
		name := c.String("size-mode")
		if name == "" {
			name = cfg.SizeMode
		}
		mode, err := imaging.ParseSizeMode(name)
		if err != nil {
			return err
		}
		if w, h, err = imaging.OutputSize(mode, img, quad); err != nil {
			return err
		}
	}

	page, err := cfg.Warper().WarpContext(c.Context, img, quad, w, h)
	if err != nil {
		return err
	}
	out := c.String("output")
	if err := imaging.Save(out, page, cfg.JPEGQuality); err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{"output": out, "width": w, "height": h}).Info("Page written")

	if c.Bool("ocr") {
		res, err := ocr.Recognize(page, cfg.OCRLanguage)
		if err != nil {
			return fmt.Errorf("ocr: %w", err)
		}
		fmt.Println(strings.TrimSpace(res.FullText))
	}
	return nil
}

func preview(c *cli.Context, logger *logrus.Logger) error {
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	img, err := loadPhoto(c)
	if err != nil {
		return err
	}

	b := img.Bounds()
	ed := editor.New(b.Dx(), b.Dy(), cfg.EditorOptions())
	if s := c.String("corners"); s != "" {
		q, err := parseQuad(s)
		if err != nil {
			return fmt.Errorf("--corners: %w", err)
		}
		if err := ed.SetQuad(q); err != nil {
			return err
		}
	}

	style, err := cfg.OverlayStyle()
	if err != nil {
		return err
	}
	style.HandleSize = ed.HandleSize()
	maxSide := c.Int("max-side")
	if maxSide < 0 {
		maxSide = cfg.PreviewMaxSide
	}

	out := c.String("output")
	if err := imaging.Save(out, imaging.RenderPreview(img, ed.Quad(), style, maxSide), cfg.JPEGQuality); err != nil {
		return err
	}
	logger.WithField("output", out).Info("Preview written")
	return nil
}

func homography(c *cli.Context, logger *logrus.Logger) error {
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	src, err := parseQuad(c.String("src"))
	if err != nil {
		return fmt.Errorf("--src: %w", err)
	}
	dst, err := parseQuad(c.String("dst"))
	if err != nil {
		return fmt.Errorf("--dst: %w", err)
	}
	h, err := cfg.NewSolver().Estimate(src, dst)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(h)
}

func loadPhoto(c *cli.Context) (*image.NRGBA, error) {
	if c.NArg() != 1 {
		return nil, fmt.Errorf("expected exactly one photo path, got %d arguments", c.NArg())
	}
	return imaging.NewImageCache().Load(c.Context, c.Args().First())
}

// parseQuad reads eight numbers separated by commas or spaces.
func parseQuad(s string) (geometry.Quad, error) {
	var q geometry.Quad
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) != 8 {
		return q, fmt.Errorf("expected 8 numbers, got %d", len(fields))
	}
	for i := range q {
		x, err := strconv.ParseFloat(fields[2*i], 64)
		if err != nil {
			return q, err
		}
		y, err := strconv.ParseFloat(fields[2*i+1], 64)
		if err != nil {
			return q, err
		}
		q[i] = geometry.Pt(x, y)
	}
	return q, nil
}
