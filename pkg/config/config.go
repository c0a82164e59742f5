// Package config provides configuration loading and validation for fastsketch.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Sentinel validation errors.
var (
	// ErrInvalidKsize indicates a negative k-mer size.
	ErrInvalidKsize = errors.New("search.ksize must be between 0 and 2^32-1")
	// ErrInvalidThreshold indicates a containment threshold outside [0, 1].
	ErrInvalidThreshold = errors.New("search.threshold must be between 0 and 1")
	// ErrInvalidThresholdBP indicates an unparsable gather threshold.
	ErrInvalidThresholdBP = errors.New("search.threshold_bp must be a size such as 50000 or 50kb")
	// ErrInvalidCores indicates a negative core count.
	ErrInvalidCores = errors.New("search.cores must be non-negative")
	// ErrInvalidIdentity indicates an unknown output identity mode.
	ErrInvalidIdentity = errors.New("output.identity must be stem or hash")
	// ErrInvalidBuffer indicates a negative sink buffer.
	ErrInvalidBuffer = errors.New("output.buffer must be non-negative")
	// ErrInvalidScaled indicates a negative scaled value.
	ErrInvalidScaled = errors.New("search.scaled must be non-negative")
)

// thresholdMax is the upper bound of a containment threshold.
const thresholdMax = 1.0

// Config is the top-level configuration struct for fastsketch.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Search    SearchConfig    `mapstructure:"search"`
	Output    OutputConfig    `mapstructure:"output"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// SearchConfig holds sketch selection and comparison knobs.
type SearchConfig struct {
	Moltype        string  `mapstructure:"moltype"`
	ThresholdBP    string  `mapstructure:"threshold_bp"`
	Threshold      float64 `mapstructure:"threshold"`
	Ksize          int     `mapstructure:"ksize"`
	Scaled         int     `mapstructure:"scaled"`
	Cores          int     `mapstructure:"cores"`
	Jaccard        bool    `mapstructure:"jaccard"`
	MaxContainment bool    `mapstructure:"max_containment"`
	AllowFailed    bool    `mapstructure:"allow_failed"`
}

// OutputConfig holds result sink settings.
type OutputConfig struct {
	Identity string `mapstructure:"identity"`
	Buffer   int    `mapstructure:"buffer"`
}

// StorageConfig holds sketch file access settings.
type StorageConfig struct {
	S3Endpoint   string `mapstructure:"s3_endpoint"`
	S3Region     string `mapstructure:"s3_region"`
	S3Secure     bool   `mapstructure:"s3_secure"`
	StrictSchema bool   `mapstructure:"strict_schema"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// TelemetryConfig holds tracing and metrics export settings.
type TelemetryConfig struct {
	OTLPEndpoint    string `mapstructure:"otlp_endpoint"`
	MetricsTextfile string `mapstructure:"metrics_textfile"`
	OTLPInsecure    bool   `mapstructure:"otlp_insecure"`
}

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	searchErr := c.validateSearch()
	if searchErr != nil {
		return searchErr
	}

	return c.validateOutput()
}

func (c *Config) validateSearch() error {
	if c.Search.Ksize < 0 || int64(c.Search.Ksize) > math.MaxUint32 {
		return ErrInvalidKsize
	}

	if c.Search.Scaled < 0 {
		return ErrInvalidScaled
	}

	if c.Search.Cores < 0 {
		return ErrInvalidCores
	}

	if c.Search.Threshold < 0 || c.Search.Threshold > thresholdMax {
		return ErrInvalidThreshold
	}

	_, err := ParseThresholdBP(c.Search.ThresholdBP)
	if err != nil {
		return err
	}

	return nil
}

func (c *Config) validateOutput() error {
	if c.Output.Buffer < 0 {
		return ErrInvalidBuffer
	}

	switch strings.ToLower(c.Output.Identity) {
	case "", "stem", "hash":
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidIdentity, c.Output.Identity)
	}
}
