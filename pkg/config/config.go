// Package config loads run configuration from flags and DIAMONDPREP_*
// environment variables.
package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/diamondprep/diamonds"
	"github.com/YuminosukeSato/diamondprep/pkg/errors"
	"github.com/YuminosukeSato/diamondprep/pkg/fetch"
	"github.com/YuminosukeSato/diamondprep/pkg/log"
	"github.com/YuminosukeSato/diamondprep/preprocessing"
)

// EnvPrefix prefixes every environment variable: --train-fraction is
// read from DIAMONDPREP_TRAIN_FRACTION.
const EnvPrefix = "DIAMONDPREP"

// Keys, shared by flags and environment variables.
const (
	KeySourceURL         = "source-url"
	KeySeed              = "seed"
	KeyTrainFraction     = "train-fraction"
	KeySampleSize        = "sample-size"
	KeyUnknownCategories = "unknown-categories"
	KeyHTTPTimeout       = "http-timeout"
	KeyHistogram         = "histogram"
	KeyMetricsFile       = "metrics-file"
	KeyS3Bucket          = "s3-bucket"
	KeyS3Prefix          = "s3-prefix"
	KeyS3Region          = "s3-region"
	KeyS3Endpoint        = "s3-endpoint"
	KeyS3PathStyle       = "s3-path-style"
	KeyLogLevel          = "log-level"
)

// RandomSeed asks for a fresh seed on every run.
const RandomSeed = -1

type Config struct {
	OutputDir string
	Source    SourceConfig
	Split     SplitConfig
	Output    OutputConfig
	S3        S3Config
	Logger    LoggerConfig
}

type SourceConfig struct {
	URL               string
	Timeout           time.Duration
	UnknownCategories preprocessing.UnknownPolicy
}

type SplitConfig struct {
	Seed          int64 // RandomSeed or a non-negative seed
	TrainFraction float64
	SampleSize    int
}

type OutputConfig struct {
	Histogram   bool
	MetricsFile string
}

// S3Config enables publishing when Bucket is set.
type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	PathStyle bool
}

// Enabled reports whether artifacts are published to a bucket.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

type LoggerConfig struct {
	Level string
}

// RegisterFlags defines every configuration flag on fs with its default.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(KeySourceURL, diamonds.DefaultSourceURL, "dataset location: http(s) URL, file:// URL or local path")
	fs.Int64(KeySeed, RandomSeed, "shuffle seed; -1 draws a random one")
	fs.Float64(KeyTrainFraction, diamonds.DefaultTrainFraction, "share of rows in the training partition, in (0, 1)")
	fs.Int(KeySampleSize, diamonds.DefaultSampleSize, "rows in the prediction and label samples")
	fs.String(KeyUnknownCategories, string(preprocessing.UnknownError), "unknown category handling: error or drop")
	fs.Duration(KeyHTTPTimeout, fetch.DefaultTimeout, "timeout for the dataset download")
	fs.Bool(KeyHistogram, false, "also write price_distribution.png")
	fs.String(KeyMetricsFile, "", "write run metrics to this Prometheus textfile")
	fs.String(KeyS3Bucket, "", "also publish artifacts to this S3 bucket")
	fs.String(KeyS3Prefix, "", "key prefix inside the bucket")
	fs.String(KeyS3Region, "us-east-1", "S3 region")
	fs.String(KeyS3Endpoint, "", "custom S3 endpoint, e.g. MinIO")
	fs.Bool(KeyS3PathStyle, false, "use path-style S3 addressing")
	fs.String(KeyLogLevel, "info", "log level: debug, info, warn, error")
}

// New returns a viper instance reading the environment and, when fs is not
// nil, the flags registered with RegisterFlags. Flags set on the command
// line win over the environment, which wins over flag defaults.
func New(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault(KeySourceURL, diamonds.DefaultSourceURL)
	v.SetDefault(KeySeed, RandomSeed)
	v.SetDefault(KeyTrainFraction, diamonds.DefaultTrainFraction)
	v.SetDefault(KeySampleSize, diamonds.DefaultSampleSize)
	v.SetDefault(KeyUnknownCategories, string(preprocessing.UnknownError))
	v.SetDefault(KeyHTTPTimeout, fetch.DefaultTimeout.String())
	v.SetDefault(KeyHistogram, false)
	v.SetDefault(KeyS3Region, "us-east-1")
	v.SetDefault(KeyS3PathStyle, false)
	v.SetDefault(KeyLogLevel, "info")

	// Env
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, errors.Wrap(err, "bind flags")
		}
	}
	return v, nil
}

// Load reads and validates the configuration for a run writing to outputDir.
func Load(v *viper.Viper, outputDir string) (*Config, error) {
	policy, err := preprocessing.ParseUnknownPolicy(v.GetString(KeyUnknownCategories))
	if err != nil {
		return nil, err
	}
	timeout, err := time.ParseDuration(v.GetString(KeyHTTPTimeout))
	if err != nil {
		return nil, errors.NewValidationError(KeyHTTPTimeout, "not a duration", v.GetString(KeyHTTPTimeout))
	}

	cfg := &Config{
		OutputDir: outputDir,
		Source: SourceConfig{
			URL:               v.GetString(KeySourceURL),
			Timeout:           timeout,
			UnknownCategories: policy,
		},
		Split: SplitConfig{
			Seed:          v.GetInt64(KeySeed),
			TrainFraction: v.GetFloat64(KeyTrainFraction),
			SampleSize:    v.GetInt(KeySampleSize),
		},
		Output: OutputConfig{
			Histogram:   v.GetBool(KeyHistogram),
			MetricsFile: v.GetString(KeyMetricsFile),
		},
		S3: S3Config{
			Bucket:    v.GetString(KeyS3Bucket),
			Prefix:    v.GetString(KeyS3Prefix),
			Region:    v.GetString(KeyS3Region),
			Endpoint:  v.GetString(KeyS3Endpoint),
			PathStyle: v.GetBool(KeyS3PathStyle),
		},
		Logger: LoggerConfig{
			Level: v.GetString(KeyLogLevel),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.OutputDir) == "":
		return errors.NewValidationError("output_dir", "output directory required", c.OutputDir)
	case c.Source.URL == "":
		return errors.NewValidationError(KeySourceURL, "source required", c.Source.URL)
	case c.Source.Timeout <= 0:
		return errors.NewValidationError(KeyHTTPTimeout, "must be positive", c.Source.Timeout)
	case c.Split.Seed < RandomSeed:
		return errors.NewValidationError(KeySeed, "must be -1 or non-negative", c.Split.Seed)
	case !(c.Split.TrainFraction > 0 && c.Split.TrainFraction < 1):
		return errors.NewValidationError(KeyTrainFraction, "must be in (0, 1)", c.Split.TrainFraction)
	case c.Split.SampleSize < 1:
		return errors.NewValidationError(KeySampleSize, "must be at least 1", c.Split.SampleSize)
	}
	if _, err := log.ToLogLevel(c.Logger.Level); err != nil {
		return errors.NewValidationError(KeyLogLevel, "must be one of debug, info, warn, error", c.Logger.Level)
	}
	return nil
}

// PrepareOptions translates the configuration into diamonds options.
func (c *Config) PrepareOptions() []diamonds.Option {
	opts := []diamonds.Option{
		diamonds.WithSourceURL(c.Source.URL),
		diamonds.WithTrainFraction(c.Split.TrainFraction),
		diamonds.WithSampleSize(c.Split.SampleSize),
		diamonds.WithUnknownPolicy(c.Source.UnknownCategories),
		diamonds.WithHistogram(c.Output.Histogram),
	}
	if c.Split.Seed != RandomSeed {
		opts = append(opts, diamonds.WithSeed(uint64(c.Split.Seed)))
	}
	return opts
}
