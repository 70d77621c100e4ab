package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"layerscope/internal/backend"
	"layerscope/internal/logger"
	"layerscope/internal/pipeline"
	"layerscope/internal/settings"
)

// backendLoadTimeout bounds acquiring the accelerated backend, not the
// pixel-algorithm path.
const backendLoadTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "layerscope: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		inPath       = flag.String("in", "", "input image (png, jpeg, gif, bmp, tiff, webp)")
		outPath      = flag.String("out", "out.png", "output image (.png or .jpg)")
		settingsPath = flag.String("settings", "", "settings JSON document (defaults when omitted)")
		layersFlag   = flag.String("layers", "", "comma-separated layer toggles overriding the settings document (original,filtered,contour,filteredContour,edge,lowFrequency,highFrequencyBright,highFrequencyDark)")
		quality      = flag.Int("quality", 90, "JPEG quality, 10-100")
		autoCanny    = flag.Bool("auto-thresholds", false, "estimate Canny thresholds from the image histogram")
		accelerated  = flag.Bool("accelerated", false, "use the OpenCV backend where supported")
		downscale    = flag.Bool("downscale-oversize", false, "downscale inputs exceeding the dimension cap instead of rejecting them")
		verbose      = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *inPath == "" {
		flag.Usage()
		return fmt.Errorf("missing -in")
	}

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := logger.NewConsoleLogger(level)

	doc, err := loadSettings(*settingsPath)
	if err != nil {
		return err
	}
	if *layersFlag != "" {
		layers, err := parseLayers(*layersFlag)
		if err != nil {
			return err
		}
		doc.Display.Layers = layers
	}

	ctx := context.Background()

	var accel *backend.Accelerator
	if *accelerated {
		accel = backend.New(log)
		loadCtx, cancel := context.WithTimeout(ctx, backendLoadTimeout)
		defer cancel()
		if err := accel.EnsureReady(loadCtx); err != nil {
			return fmt.Errorf("accelerated backend requested: %w", err)
		}
		doc.Canny.UseAccelerated = true
		doc.Frequency.UseAccelerated = true
	}

	loader := pipeline.NewLoader(log)
	loader.DownscaleOversize = *downscale

	in, err := os.Open(*inPath)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	img, format, err := loader.Load(in)
	if err != nil {
		return err
	}
	log.Info("CLI", "input decoded", map[string]interface{}{"format": format})

	coordinator := pipeline.NewCoordinator(log, accel)

	if *autoCanny {
		thresholds, err := coordinator.Detector().OptimalThresholds(img)
		if err != nil {
			return err
		}
		doc.Canny.LowThreshold = thresholds.Low
		doc.Canny.HighThreshold = thresholds.High
		log.Info("CLI", "auto thresholds applied", map[string]interface{}{
			"low":  thresholds.Low,
			"high": thresholds.High,
		})
	}

	outputs, err := coordinator.Analyze(ctx, img, doc)
	if err != nil {
		return err
	}

	out, err := os.Create(*outPath)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer out.Close()

	saver := pipeline.NewSaver(log)
	return saver.Save(out, outputs.Composite, formatFromPath(*outPath), *quality)
}

func loadSettings(path string) (settings.Document, error) {
	if path == "" {
		return settings.DefaultDocument(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return settings.Document{}, fmt.Errorf("failed to read settings: %w", err)
	}
	return settings.DecodeDocument(data)
}

func parseLayers(list string) (settings.Layers, error) {
	var layers settings.Layers
	for _, name := range strings.Split(list, ",") {
		switch strings.TrimSpace(name) {
		case "original":
			layers.Original = true
		case "filtered":
			layers.Filtered = true
		case "contour":
			layers.Contour = true
		case "filteredContour":
			layers.FilteredContour = true
		case "edge":
			layers.Edge = true
		case "lowFrequency":
			layers.LowFrequency = true
		case "highFrequencyBright":
			layers.HighFrequencyBright = true
		case "highFrequencyDark":
			layers.HighFrequencyDark = true
		case "":
		default:
			return settings.Layers{}, fmt.Errorf("unknown layer %q", name)
		}
	}
	return layers, nil
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "jpeg"
	default:
		return "png"
	}
}
