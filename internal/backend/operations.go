package backend

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"layerscope/internal/raster"
)

// Canny runs OpenCV's Canny detector and re-encodes the binary map as an
// RGBA edge overlay (white, alpha 255 on edges; fully transparent
// elsewhere), matching the pure-Go detector's output format.
func (a *Accelerator) Canny(img *raster.Image, low, high float64, l2gradient bool) (*raster.Image, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}

	gray, err := toGrayMat(img)
	if err != nil {
		return nil, err
	}
	defer gray.Close()

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.CannyWithParams(gray, &edges, float32(low), float32(high), 3, l2gradient)

	data, err := edges.DataPtrUint8()
	if err != nil {
		return nil, fmt.Errorf("failed to read edge Mat: %w", err)
	}

	out, err := raster.New(img.Width, img.Height)
	if err != nil {
		return nil, err
	}
	for i, v := range data {
		if v > 0 {
			off := i * 4
			out.Pix[off] = 255
			out.Pix[off+1] = 255
			out.Pix[off+2] = 255
			out.Pix[off+3] = 255
		}
	}
	return out, nil
}

// GaussianBlur runs the accelerated blur over all four channels.
func (a *Accelerator) GaussianBlur(img *raster.Image, sigma float64) (*raster.Image, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	if sigma <= 0 {
		return img.Clone(), nil
	}

	src, err := toRGBAMat(img)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	kernelSize := int(sigma*6) + 1
	if kernelSize%2 == 0 {
		kernelSize++
	}

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.GaussianBlur(src, &dst, image.Point{X: kernelSize, Y: kernelSize}, sigma, sigma, gocv.BorderReplicate)

	return fromRGBAMat(dst, img.Width, img.Height)
}

// MedianBlur runs the accelerated median filter. radius is in pixels, as
// with raster.Image.MedianBlur.
func (a *Accelerator) MedianBlur(img *raster.Image, radius int) (*raster.Image, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	if radius <= 0 {
		return img.Clone(), nil
	}

	src, err := toRGBAMat(img)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.MedianBlur(src, &dst, radius*2+1)

	return fromRGBAMat(dst, img.Width, img.Height)
}

func toRGBAMat(img *raster.Image) (gocv.Mat, error) {
	mat, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV8UC4, img.Pix)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to wrap image in Mat: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.Mat{}, fmt.Errorf("wrapped Mat is empty")
	}
	return mat, nil
}

func toGrayMat(img *raster.Image) (gocv.Mat, error) {
	rgba, err := toRGBAMat(img)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer rgba.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(rgba, &gray, gocv.ColorRGBAToGray)
	if gray.Empty() {
		gray.Close()
		return gocv.Mat{}, fmt.Errorf("grayscale conversion produced empty Mat")
	}
	return gray, nil
}

func fromRGBAMat(mat gocv.Mat, width, height int) (*raster.Image, error) {
	data := mat.ToBytes()
	if len(data) != width*height*4 {
		return nil, fmt.Errorf("unexpected Mat byte length %d for %dx%d RGBA", len(data), width, height)
	}
	pix := make([]uint8, len(data))
	copy(pix, data)
	return raster.FromBytes(width, height, pix)
}
