package pipeline

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"layerscope/internal/logger"
	"layerscope/internal/raster"
)

// Saver encodes rendered buffers for export.
type Saver struct {
	log logger.Logger
}

func NewSaver(log logger.Logger) *Saver {
	return &Saver{log: logger.OrNop(log)}
}

// Save encodes img as "png" or "jpeg". quality applies to JPEG only and is
// clamped into [10, 100]; unknown formats fall back to PNG.
func (s *Saver) Save(writer io.Writer, img *raster.Image, format string, quality int) error {
	if err := img.Validate(); err != nil {
		return err
	}

	rgba := &image.RGBA{
		Pix:    img.Pix,
		Stride: img.Width * 4,
		Rect:   image.Rect(0, 0, img.Width, img.Height),
	}

	switch format {
	case "jpeg", "jpg":
		if quality < 10 {
			quality = 10
		}
		if quality > 100 {
			quality = 100
		}
		if err := jpeg.Encode(writer, rgba, &jpeg.Options{Quality: quality}); err != nil {
			return fmt.Errorf("failed to encode jpeg: %w", err)
		}
	case "png":
		if err := png.Encode(writer, rgba); err != nil {
			return fmt.Errorf("failed to encode png: %w", err)
		}
	default:
		s.log.Warning("PipelineSaver", "unsupported format, saving as PNG", map[string]interface{}{
			"format": format,
		})
		if err := png.Encode(writer, rgba); err != nil {
			return fmt.Errorf("failed to encode png: %w", err)
		}
	}

	s.log.Info("PipelineSaver", "image saved", map[string]interface{}{
		"format":  format,
		"width":   img.Width,
		"height":  img.Height,
		"quality": quality,
	})
	return nil
}
