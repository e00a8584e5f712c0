package diamonds

import (
	"math/rand/v2"
	"time"

	"github.com/YuminosukeSato/diamondprep/pkg/fetch"
	"github.com/YuminosukeSato/diamondprep/pkg/log"
	"github.com/YuminosukeSato/diamondprep/pkg/telemetry"
	"github.com/YuminosukeSato/diamondprep/preprocessing"
)

// Defaults.
const (
	DefaultTrainFraction = 0.8
	DefaultSampleSize    = 20
)

type options struct {
	sourceURL     string
	fetcher       fetch.Fetcher
	rng           *rand.Rand
	seed          uint64
	seeded        bool
	trainFraction float64
	sampleSize    int
	unknown       preprocessing.UnknownPolicy
	histogram     bool
	logger        log.Logger
	recorder      *telemetry.Recorder
	runID         string
	now           func() time.Time
}

func defaultOptions() *options {
	return &options{
		sourceURL:     DefaultSourceURL,
		trainFraction: DefaultTrainFraction,
		sampleSize:    DefaultSampleSize,
		unknown:       preprocessing.UnknownError,
		now:           time.Now,
	}
}

// Option configures Prepare.
type Option func(*options)

// WithSourceURL sets the dataset location: an http(s) URL, a file:// URL or a local path.
func WithSourceURL(url string) Option {
	return func(o *options) {
		o.sourceURL = url
	}
}

// WithFetcher replaces the default fetcher.
func WithFetcher(f fetch.Fetcher) Option {
	return func(o *options) {
		o.fetcher = f
	}
}

// WithSeed makes the shuffle reproducible.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
		o.seeded = true
		o.rng = nil
	}
}

// WithRand shuffles with r. The run's seed is then unknown and Result.Seed is zero.
func WithRand(r *rand.Rand) Option {
	return func(o *options) {
		o.rng = r
		o.seed = 0
		o.seeded = false
	}
}

// WithTrainFraction sets the share of rows in the training partition.
func WithTrainFraction(f float64) Option {
	return func(o *options) {
		o.trainFraction = f
	}
}

// WithSampleSize sets how many rows the prediction and label samples hold.
func WithSampleSize(n int) Option {
	return func(o *options) {
		o.sampleSize = n
	}
}

// WithUnknownPolicy sets how category values outside the known orderings are handled.
func WithUnknownPolicy(p preprocessing.UnknownPolicy) Option {
	return func(o *options) {
		o.unknown = p
	}
}

// WithHistogram also writes price_distribution.png.
func WithHistogram(enabled bool) Option {
	return func(o *options) {
		o.histogram = enabled
	}
}

// WithLogger sets the logger. Defaults to log.GetLogger().
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithRecorder counts rows and artifact bytes on r.
func WithRecorder(r *telemetry.Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// WithRunID sets the id attached to logs and artifact metadata. Defaults to a random uuid.
func WithRunID(id string) Option {
	return func(o *options) {
		o.runID = id
	}
}
