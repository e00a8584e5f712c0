package diamonds

import (
	"bytes"
	"context"
	"io"
	"math/rand/v2"
	"strconv"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/diamondprep/dataset"
	"github.com/YuminosukeSato/diamondprep/pkg/blob"
	"github.com/YuminosukeSato/diamondprep/pkg/errors"
	"github.com/YuminosukeSato/diamondprep/pkg/fetch"
	"github.com/YuminosukeSato/diamondprep/pkg/log"
	"github.com/YuminosukeSato/diamondprep/pkg/report"
	"github.com/YuminosukeSato/diamondprep/pkg/telemetry"
	"github.com/YuminosukeSato/diamondprep/preprocessing"
)

// Artifact keys.
const (
	TrainArtifact     = "train_diamonds.parquet"
	TestArtifact      = "test_diamonds.parquet"
	FeaturesArtifact  = "diamonds.csv"
	LabelsArtifact    = "diamond_prices.csv"
	HistogramArtifact = "price_distribution.png"
)

// Artifact metadata keys.
const (
	MetaRunID = "run-id"
	MetaRows  = "rows"
)

// Result is what Prepare produced.
type Result struct {
	// Full is the recoded, renamed and shuffled dataset.
	Full *dataset.Frame
	// Train and Test partition Full in order.
	Train *dataset.Frame
	Test  *dataset.Frame
	// Artifacts lists what was written, in write order.
	Artifacts []blob.Info
	// Dropped counts rows removed under the drop policy.
	Dropped int
	// Seed replays the shuffle with WithSeed. Zero when WithRand was used.
	Seed  uint64
	RunID string
}

// PrepareDir runs Prepare against a filesystem store rooted at dir.
func PrepareDir(ctx context.Context, dir string, opts ...Option) (*Result, error) {
	store, err := blob.NewFS(dir)
	if err != nil {
		return nil, err
	}
	return Prepare(ctx, store, opts...)
}

// Prepare fetches the dataset, transforms it and writes the artifacts to
// store. Nothing is retried; the first failure is returned.
func Prepare(ctx context.Context, store blob.Store, opts ...Option) (*Result, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}
	if o.logger == nil {
		o.logger = log.GetLogger()
	}
	if o.fetcher == nil {
		o.fetcher = fetch.New(fetch.DefaultTimeout, fetch.WithLogger(o.logger))
	}
	if o.rng == nil {
		if !o.seeded {
			o.seed = rand.Uint64()
		}
		o.rng = rand.New(rand.NewPCG(o.seed, o.seed))
	}

	p := &preparer{
		opts:  o,
		store: store,
		logger: o.logger.With(
			log.ComponentKey, "diamonds",
			log.RunIDKey, o.runID,
		),
	}

	start := o.now()
	res, err := p.run(ctx)
	elapsed := o.now().Sub(start)
	o.recorder.ObserveRun(elapsed, err == nil, o.now())
	if err != nil {
		return nil, err
	}
	p.logger.Info("preparation complete",
		log.SamplesKey, res.Full.NRows(),
		log.TrainSamplesKey, res.Train.NRows(),
		log.TestSamplesKey, res.Test.NRows(),
		log.DroppedKey, res.Dropped,
		log.DurationMsKey, elapsed.Milliseconds(),
	)
	return res, nil
}

func (o *options) validate() error {
	if o.sourceURL == "" && o.fetcher == nil {
		return errors.NewValidationError("source_url", "source required", o.sourceURL)
	}
	if !(o.trainFraction > 0 && o.trainFraction < 1) {
		return errors.NewValidationError("train_fraction", "must be in (0, 1)", o.trainFraction)
	}
	if o.sampleSize < 1 {
		return errors.NewValidationError("sample_size", "must be at least 1", o.sampleSize)
	}
	if _, err := preprocessing.ParseUnknownPolicy(string(o.unknown)); err != nil {
		return err
	}
	return nil
}

type preparer struct {
	opts   *options
	store  blob.Store
	logger log.Logger
}

func (p *preparer) run(ctx context.Context) (*Result, error) {
	o := p.opts

	raw, err := p.fetch(ctx)
	if err != nil {
		return nil, err
	}

	full, dropped, err := p.recode(raw)
	if err != nil {
		return nil, err
	}

	names, err := preprocessing.SanitizeNames(full.Names())
	if err != nil {
		return nil, err
	}
	if full, err = full.WithNames(names); err != nil {
		return nil, err
	}

	full = dataset.Shuffle(full, o.rng)
	p.logger.Info("shuffled rows", log.PhaseKey, log.PhaseShuffle, log.RandomSeedKey, o.seed)

	train, test, err := dataset.TrainTestSplit(full, o.trainFraction)
	if err != nil {
		return nil, err
	}
	o.recorder.AddRows(telemetry.StageTrain, train.NRows())
	o.recorder.AddRows(telemetry.StageTest, test.NRows())
	p.logger.Info("split dataset",
		log.PhaseKey, log.PhaseSplit,
		log.TrainFractionKey, o.trainFraction,
		log.TrainSamplesKey, train.NRows(),
		log.TestSamplesKey, test.NRows(),
	)

	res := &Result{
		Full:    full,
		Train:   train,
		Test:    test,
		Dropped: dropped,
		Seed:    o.seed,
		RunID:   o.runID,
	}
	if err := p.writeArtifacts(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (p *preparer) fetch(ctx context.Context) (*dataset.RawTable, error) {
	source := p.opts.sourceURL
	p.logger.Info("fetching source", log.PhaseKey, log.PhaseFetch, log.SourceURLKey, source)

	rc, err := p.opts.fetcher.Fetch(ctx, source)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	raw, err := dataset.ReadCSV(rc)
	if err != nil {
		return nil, err
	}
	if len(raw.Records) == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyData, "source %s has no data rows", source)
	}
	p.opts.recorder.AddRows(telemetry.StageFetched, len(raw.Records))
	p.logger.Info("fetched source",
		log.PhaseKey, log.PhaseFetch,
		log.SamplesKey, len(raw.Records),
		log.FeaturesKey, len(raw.Header),
	)
	return raw, nil
}

type unknownValue struct {
	column, value string
}

// recode decodes the raw table, applying the unknown-category policy.
func (p *preparer) recode(raw *dataset.RawTable) (*dataset.Frame, int, error) {
	var (
		order  []unknownValue
		counts = make(map[unknownValue]int)
	)
	onError := func(row int, column string, err error) error {
		var uce *errors.UnknownCategoryError
		if !errors.As(err, &uce) {
			return err
		}
		if p.opts.unknown != preprocessing.UnknownDrop {
			return errors.NewUnknownCategoryError(column, uce.Value, row)
		}
		k := unknownValue{column: column, value: uce.Value}
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
		return nil
	}

	full, err := dataset.Decode(raw, Schema(), onError)
	if err != nil {
		return nil, 0, err
	}

	dropped := len(raw.Records) - full.NRows()
	for _, k := range order {
		errors.Warn(errors.NewUnknownCategoryWarning(k.column, k.value, counts[k]))
		p.logger.Warn("dropped rows with unknown category",
			log.ColumnKey, k.column,
			log.ValueKey, k.value,
			log.DroppedKey, counts[k],
		)
	}
	if full.NRows() == 0 {
		return nil, 0, errors.Wrap(errors.ErrEmptyData, "every row was dropped")
	}
	p.opts.recorder.AddRows(telemetry.StageDropped, dropped)
	p.logger.Info("recoded categorical columns",
		log.PhaseKey, log.PhaseRecode,
		log.SamplesKey, full.NRows(),
		log.DroppedKey, dropped,
	)
	return full, dropped, nil
}

func (p *preparer) writeArtifacts(ctx context.Context, res *Result) error {
	head := res.Full.Head(p.opts.sampleSize)
	features, err := head.Drop(Target)
	if err != nil {
		return err
	}
	labels, err := head.Select(Target)
	if err != nil {
		return err
	}
	p.opts.recorder.AddRows(telemetry.StageSample, head.NRows())

	type artifact struct {
		key         string
		contentType string
		rows        int
		encode      func(io.Writer) error
	}
	artifacts := []artifact{
		{TrainArtifact, "application/vnd.apache.parquet", res.Train.NRows(), func(w io.Writer) error {
			return dataset.WriteParquet(w, res.Train)
		}},
		{TestArtifact, "application/vnd.apache.parquet", res.Test.NRows(), func(w io.Writer) error {
			return dataset.WriteParquet(w, res.Test)
		}},
		{FeaturesArtifact, "text/csv", features.NRows(), func(w io.Writer) error {
			return dataset.WriteCSV(w, features)
		}},
		{LabelsArtifact, "text/csv", labels.NRows(), func(w io.Writer) error {
			return dataset.WriteCSV(w, labels)
		}},
	}
	if p.opts.histogram {
		artifacts = append(artifacts, artifact{HistogramArtifact, "image/png", res.Full.NRows(), func(w io.Writer) error {
			return writePriceHistogram(w, res.Train, res.Test)
		}})
	}

	for _, a := range artifacts {
		info, err := p.put(ctx, a.key, a.contentType, a.rows, a.encode)
		if err != nil {
			return err
		}
		res.Artifacts = append(res.Artifacts, info)
	}
	return nil
}

// put encodes one artifact in memory and stores it in a single write.
func (p *preparer) put(ctx context.Context, key, contentType string, rows int, encode func(io.Writer) error) (blob.Info, error) {
	var buf bytes.Buffer
	if err := encode(&buf); err != nil {
		return blob.Info{}, errors.NewWriteError(key, err)
	}
	info, err := p.store.Put(ctx, key, &buf, blob.PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			MetaRunID: p.opts.runID,
			MetaRows:  strconv.Itoa(rows),
		},
	})
	if err != nil {
		return blob.Info{}, errors.NewWriteError(key, err)
	}
	p.opts.recorder.AddArtifact(key, info.Size)
	p.logger.Info("wrote artifact",
		log.PhaseKey, log.PhaseWrite,
		log.ArtifactKey, key,
		log.ArtifactSizeKey, info.Size,
		log.StoreDriverKey, string(p.store.Driver()),
	)
	return info, nil
}

func writePriceHistogram(w io.Writer, train, test *dataset.Frame) error {
	trainPrices, err := train.Column(Target)
	if err != nil {
		return err
	}
	testPrices, err := test.Column(Target)
	if err != nil {
		return err
	}
	opts := report.HistogramOptions{Title: "diamond prices", XLabel: Target}
	return report.WriteHistogramPNG(w, opts,
		report.Series{Label: "train", Values: trainPrices},
		report.Series{Label: "test", Values: testPrices},
	)
}
