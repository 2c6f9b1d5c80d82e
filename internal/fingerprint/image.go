package fingerprint

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decode decodes an image in any registered format and returns the format name.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// ExtractBytes decodes data and extracts its feature vector. Undecodable data
// yields the same absent result as an unprocessable image.
func (e Extractor) ExtractBytes(data []byte) (Vector, bool) {
	img, _, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	return e.Extract(img)
}

// ExtractBytes is a shorthand for Extractor{Size: size}.ExtractBytes(data) with
// options applied.
func ExtractBytes(data []byte, size Size, opts ...Option) (Vector, bool) {
	e := Extractor{Size: size}
	for _, opt := range opts {
		opt(&e)
	}
	return e.ExtractBytes(data)
}

// Downscale shrinks img so that its shorter side equals bound, keeping the aspect
// ratio. Images already within the bound, and non-positive bounds, are returned
// unchanged.
func Downscale(img image.Image, bound int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	shorter := min(width, height)
	if bound <= 0 || shorter <= bound {
		return img
	}

	// Calculate new dimensions.
	newWidth := max(1, int(float64(width)*float64(bound)/float64(shorter)))
	newHeight := max(1, int(float64(height)*float64(bound)/float64(shorter)))

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.ApproxBiLinear.Scale(resized, resized.Bounds(), img, bounds, draw.Src, nil)
	return resized
}
