package constants

import "time"

// Handler constants
const (
	// DefaultRunListLimit is the number of stored runs returned when no limit is given
	DefaultRunListLimit = 50

	// MaxRunListLimit caps the limit query parameter of the runs endpoint
	MaxRunListLimit = 500

	// DefaultJobHistory is the number of scan jobs kept in memory
	DefaultJobHistory = 100
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)

// File upload constants
const (
	// MaxUploadSize is the maximum file upload size in bytes (100MB)
	MaxUploadSize = 100 << 20

	// MaxClusterUploadFiles caps the number of files in one synchronous cluster request
	MaxClusterUploadFiles = 500
)

// Server constants
const (
	// RequestTimeout bounds a single HTTP request
	RequestTimeout = 5 * time.Minute

	// ShutdownTimeout bounds graceful shutdown of the HTTP server
	ShutdownTimeout = 30 * time.Second
)
