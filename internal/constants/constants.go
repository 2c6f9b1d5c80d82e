// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Clustering defaults
const (
	// DefaultClusterWidth is the width of the grayscale image compared by SSIM
	DefaultClusterWidth = 64

	// DefaultClusterHeight is the height of the grayscale image compared by SSIM
	DefaultClusterHeight = 64

	// DefaultThreshold is the SSIM score a pair must exceed to be grouped
	DefaultThreshold = 0.6

	// DefaultComparisonWindow is how many following photos each seed is compared with
	DefaultComparisonWindow = 100

	// DefaultBatchSize is the number of photos extracted and clustered per pass
	DefaultBatchSize = 100

	// MaxClusterDimension bounds width and height accepted from API requests
	MaxClusterDimension = 512
)

// Library constants
const (
	// DefaultThumbnailSize bounds the shorter side of a photo before extraction
	DefaultThumbnailSize = 200
)

// ImageExtensions lists the file extensions picked up when scanning a library.
var ImageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".bmp":  {},
	".tif":  {},
	".tiff": {},
	".webp": {},
}
