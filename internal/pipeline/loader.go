package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"time"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"layerscope/internal/logger"
	"layerscope/internal/raster"
)

// Loader decodes raster images from a stream. Oversized inputs are either
// Lanczos-downscaled to fit the dimension cap or rejected, depending on
// policy.
type Loader struct {
	log logger.Logger
	// DownscaleOversize enables the downscale policy for inputs exceeding
	// raster.MaxDimension on either side. Off by default: oversized inputs
	// are rejected.
	DownscaleOversize bool
}

func NewLoader(log logger.Logger) *Loader {
	return &Loader{log: logger.OrNop(log)}
}

// Load decodes an image and converts it to a flat RGBA buffer. Returns the
// image and the detected container format.
func (l *Loader) Load(reader io.Reader) (*raster.Image, string, error) {
	startTime := time.Now()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image data: %w", err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if width > raster.MaxDimension || height > raster.MaxDimension {
		if !l.DownscaleOversize {
			return nil, "", &raster.DimensionError{
				Width:   width,
				Height:  height,
				Message: fmt.Sprintf("exceeds maximum dimension %d", raster.MaxDimension),
			}
		}
		img = downscaleToFit(img, raster.MaxDimension)
		bounds = img.Bounds()
		l.log.Warning("PipelineLoader", "oversized input downscaled", map[string]interface{}{
			"originalWidth":  width,
			"originalHeight": height,
			"width":          bounds.Dx(),
			"height":         bounds.Dy(),
		})
		width, height = bounds.Dx(), bounds.Dy()
	}

	result, err := toRaster(img, width, height)
	if err != nil {
		return nil, "", err
	}

	l.log.Info("PipelineLoader", "image loaded", map[string]interface{}{
		"width":  width,
		"height": height,
		"format": format,
		"time":   time.Since(startTime).String(),
	})
	return result, format, nil
}

func downscaleToFit(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	width, height := uint(bounds.Dx()), uint(bounds.Dy())
	if width >= height {
		return resize.Resize(uint(maxDim), 0, img, resize.Lanczos3)
	}
	return resize.Resize(0, uint(maxDim), img, resize.Lanczos3)
}

func toRaster(img image.Image, width, height int) (*raster.Image, error) {
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != width*4 || !rgba.Rect.Min.Eq(image.Point{}) {
		normalized := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.Draw(normalized, normalized.Bounds(), img, img.Bounds().Min, draw.Src)
		rgba = normalized
	}
	return raster.FromBytes(width, height, rgba.Pix)
}
