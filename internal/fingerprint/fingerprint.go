// Package fingerprint reduces images to fixed-length grayscale feature vectors
// suitable for structural similarity comparison.
package fingerprint

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// Size is the extraction resolution.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Len returns the vector length produced for this size.
func (s Size) Len() int {
	return s.Width * s.Height
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Vector is a row-major grayscale feature vector with components in [0,1].
type Vector []float64

// Resampler names the interpolation used to scale an image to the extraction size.
type Resampler string

const (
	BiLinear       Resampler = "bilinear"
	ApproxBiLinear Resampler = "approx-bilinear"
	CatmullRom     Resampler = "catmull-rom"
	Lanczos3       Resampler = "lanczos3"
)

// GrayMode names the monochrome conversion.
type GrayMode string

const (
	// BT601 is the ITU-R BT.601 luma used by most photo tooling.
	BT601 GrayMode = "bt601"
	// BT709 uses the HDTV luma coefficients.
	BT709 GrayMode = "bt709"
	// Lightness is CIE L* scaled to [0,1].
	Lightness GrayMode = "lightness"
)

// ParseResampler parses a resampler name. An empty name selects BiLinear.
func ParseResampler(name string) (Resampler, error) {
	switch r := Resampler(strings.ToLower(strings.TrimSpace(name))); r {
	case "":
		return BiLinear, nil
	case BiLinear, ApproxBiLinear, CatmullRom, Lanczos3:
		return r, nil
	default:
		return "", fmt.Errorf("unknown resampler %q", name)
	}
}

// ParseGrayMode parses a grayscale mode name. An empty name selects BT601.
func ParseGrayMode(name string) (GrayMode, error) {
	switch m := GrayMode(strings.ToLower(strings.TrimSpace(name))); m {
	case "":
		return BT601, nil
	case BT601, BT709, Lightness:
		return m, nil
	default:
		return "", fmt.Errorf("unknown grayscale mode %q", name)
	}
}

// Extractor converts images into feature vectors. The zero values of Resampler
// and Gray select BiLinear and BT601. An Extractor is safe for concurrent use.
type Extractor struct {
	Size      Size
	Resampler Resampler
	Gray      GrayMode
}

// Option configures Extract.
type Option func(*Extractor)

// WithResampler selects the interpolation.
func WithResampler(r Resampler) Option {
	return func(e *Extractor) { e.Resampler = r }
}

// WithGrayMode selects the monochrome conversion.
func WithGrayMode(m GrayMode) Option {
	return func(e *Extractor) { e.Gray = m }
}

// Extract is a shorthand for Extractor{Size: size}.Extract(img) with options applied.
func Extract(img image.Image, size Size, opts ...Option) (Vector, bool) {
	e := Extractor{Size: size}
	for _, opt := range opts {
		opt(&e)
	}
	return e.Extract(img)
}

// Extract stretches img to the extractor size, converts it to 8-bit grayscale and
// normalizes every pixel to [0,1]. It returns false instead of an error when the
// image cannot be processed; callers skip such images.
func (e Extractor) Extract(img image.Image) (vec Vector, ok bool) {
	if img == nil || img.Bounds().Empty() || !e.Size.Valid() {
		return nil, false
	}

	defer func() {
		// Some decoders produce images whose At panics on malformed data.
		if r := recover(); r != nil {
			vec, ok = nil, false
		}
	}()

	scaled := e.scale(img)
	if scaled == nil {
		return nil, false
	}
	return toVector(scaled, e.Gray), true
}

func (e Extractor) scale(img image.Image) image.Image {
	w, h := e.Size.Width, e.Size.Height

	var scaler draw.Scaler
	switch e.Resampler {
	case Lanczos3:
		return resize.Resize(uint(w), uint(h), img, resize.Lanczos3)
	case ApproxBiLinear:
		scaler = draw.ApproxBiLinear
	case CatmullRom:
		scaler = draw.CatmullRom
	case BiLinear, "":
		scaler = draw.BiLinear
	default:
		return nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	scaler.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// toVector converts img to a row-major vector of quantized grayscale values.
func toVector(img image.Image, mode GrayMode) Vector {
	bounds := img.Bounds()
	vec := make(Vector, 0, bounds.Dx()*bounds.Dy())

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			vec = append(vec, float64(grayLevel(img.At(x, y), mode))/255)
		}
	}

	return vec
}

// grayLevel returns the 8-bit gray level of c.
func grayLevel(c color.Color, mode GrayMode) uint8 {
	switch mode {
	case Lightness:
		cf, ok := colorful.MakeColor(c)
		if !ok {
			return 0
		}
		l, _, _ := cf.Lab()
		return quantize(l * 255)
	case BT709:
		r, g, b, _ := c.RGBA()
		return quantize(0.2126*float64(r>>8) + 0.7152*float64(g>>8) + 0.0722*float64(b>>8))
	default:
		r, g, b, _ := c.RGBA()
		// ITU-R BT.601 luma formula.
		return quantize(0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8))
	}
}

func quantize(v float64) uint8 {
	v = math.Round(v)
	switch {
	case v <= 0 || math.IsNaN(v):
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}
