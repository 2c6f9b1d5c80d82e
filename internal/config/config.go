package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/samephoto/internal/cluster"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// EnvConfigPath names the environment variable holding the user config file path.
const EnvConfigPath = "SAMEPHOTO_CONFIG"

type Config struct {
	Cluster  ClusterConfig  `yaml:"cluster"`
	Library  LibraryConfig  `yaml:"library"`
	Database DatabaseConfig `yaml:"database"`
	Web      WebConfig      `yaml:"web"`
	Log      LogConfig      `yaml:"log"`
}

type ClusterConfig struct {
	Width     int     `yaml:"width"`
	Height    int     `yaml:"height"`
	Threshold float64 `yaml:"threshold"`
	Window    int     `yaml:"window"`
	BatchSize int     `yaml:"batch_size"`
	Workers   int     `yaml:"workers"`   // extraction workers, 0 means GOMAXPROCS
	Resampler string  `yaml:"resampler"` // bilinear, approx-bilinear, catmull-rom, lanczos3
	Grayscale string  `yaml:"grayscale"` // bt601, bt709, lightness
}

type LibraryConfig struct {
	ThumbnailSize int `yaml:"thumbnail_size"` // bound on the shorter side before extraction
}

type DatabaseConfig struct {
	URL          string `yaml:"url"`            // postgres://, mysql://, sqlite:// or a *.db path; empty disables run history
	MaxOpenConns int    `yaml:"max_open_conns"` // Maximum open connections (default 25)
	MaxIdleConns int    `yaml:"max_idle_conns"` // Maximum idle connections (default 5)
}

type WebConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	ScanRoot       string `yaml:"scan_root"`       // scans requested over HTTP must stay below this directory
	JobHistory     int    `yaml:"job_history"`     // number of scan jobs kept in memory
	AllowedOrigins string `yaml:"allowed_origins"` // comma separated CORS origins
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// ClusterParams returns the clustering parameters of the configuration.
func (c *Config) ClusterParams() cluster.Params {
	return cluster.Params{
		Width:     c.Cluster.Width,
		Height:    c.Cluster.Height,
		Threshold: c.Cluster.Threshold,
		Window:    c.Cluster.Window,
	}
}

// Validate checks the values that cannot be corrected later by flags.
func (c *Config) Validate() error {
	if err := c.ClusterParams().Validate(); err != nil {
		return err
	}
	if c.Cluster.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.Cluster.BatchSize)
	}
	return nil
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

// envString returns the environment variable or the default when it is unset or empty.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return &cfg
}

// Load builds the configuration from the built-in defaults, the YAML file at
// path (or $SAMEPHOTO_CONFIG when path is empty) and environment variables, in
// that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Cluster.Width = envInt("CLUSTER_WIDTH", c.Cluster.Width)
	c.Cluster.Height = envInt("CLUSTER_HEIGHT", c.Cluster.Height)
	c.Cluster.Threshold = envFloat("CLUSTER_THRESHOLD", c.Cluster.Threshold)
	c.Cluster.Window = envInt("CLUSTER_WINDOW", c.Cluster.Window)
	c.Cluster.BatchSize = envInt("BATCH_SIZE", c.Cluster.BatchSize)
	c.Cluster.Workers = envInt("EXTRACT_WORKERS", c.Cluster.Workers)
	c.Cluster.Resampler = envString("RESAMPLER", c.Cluster.Resampler)
	c.Cluster.Grayscale = envString("GRAYSCALE", c.Cluster.Grayscale)

	c.Library.ThumbnailSize = envInt("THUMBNAIL_SIZE", c.Library.ThumbnailSize)

	c.Database.URL = envString("DATABASE_URL", c.Database.URL)
	c.Database.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = envInt("DATABASE_MAX_IDLE_CONNS", c.Database.MaxIdleConns)

	c.Web.Host = envString("WEB_HOST", c.Web.Host)
	c.Web.Port = envInt("WEB_PORT", c.Web.Port)
	c.Web.ScanRoot = envString("SCAN_ROOT", c.Web.ScanRoot)
	c.Web.JobHistory = envInt("JOB_HISTORY", c.Web.JobHistory)
	c.Web.AllowedOrigins = envString("WEB_ALLOWED_ORIGINS", c.Web.AllowedOrigins)

	c.Log.Level = envString("LOG_LEVEL", c.Log.Level)
	c.Log.Format = envString("LOG_FORMAT", c.Log.Format)
}
