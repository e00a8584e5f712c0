package diamonds

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/diamondprep/dataset"
	"github.com/YuminosukeSato/diamondprep/pkg/blob"
	"github.com/YuminosukeSato/diamondprep/pkg/errors"
	"github.com/YuminosukeSato/diamondprep/pkg/log"
	"github.com/YuminosukeSato/diamondprep/pkg/telemetry"
	"github.com/YuminosukeSato/diamondprep/preprocessing"
)

var sourceHeader = []string{"carat", "cut", "color", "clarity", "depth", "table", "price", "x", "y", "z"}

// diamondsCSV renders n rows shaped like the real source. Prices are
// 300+i so every row is identifiable. mutate may edit a record in place.
func diamondsCSV(n int, mutate func(i int, rec []string)) string {
	var b strings.Builder
	b.WriteString(`"` + strings.Join(sourceHeader, `","`) + `"` + "\n")
	for i := 0; i < n; i++ {
		rec := []string{
			fmt.Sprintf("%.2f", 0.2+0.01*float64(i)),
			CutOrder[i%len(CutOrder)],
			ColorOrder[i%len(ColorOrder)],
			ClarityOrder[i%len(ClarityOrder)],
			"61.5",
			"55",
			fmt.Sprint(300 + i),
			"3.95",
			"3.98",
			"2.43",
		}
		if mutate != nil {
			mutate(i, rec)
		}
		for j := 1; j <= 3; j++ {
			rec[j] = `"` + rec[j] + `"`
		}
		b.WriteString(strings.Join(rec, ","))
		b.WriteByte('\n')
	}
	return b.String()
}

// withExtraColumn appends a column to every line of a rendered CSV.
func withExtraColumn(body, name, value string) string {
	lines := strings.Split(strings.TrimSpace(body), "\n")
	lines[0] += `,"` + name + `"`
	for i := 1; i < len(lines); i++ {
		lines[i] += "," + value
	}
	return strings.Join(lines, "\n") + "\n"
}

func serve(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func quietLogger() log.Logger {
	l, _ := log.NewTestLogger(log.LevelError)
	return l
}

func prices(t *testing.T, f *dataset.Frame) []float64 {
	t.Helper()
	col, err := f.Column(Target)
	require.NoError(t, err)
	return col
}

func sorted(values []float64) []float64 {
	out := append([]float64(nil), values...)
	sort.Float64s(out)
	return out
}

func readParquetFile(t *testing.T, path string) *dataset.Frame {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	f, err := dataset.ReadParquet(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return f
}

func readCSVFile(t *testing.T, path string) *dataset.RawTable {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	raw, err := dataset.ReadCSV(file)
	require.NoError(t, err)
	return raw
}

func TestPrepareEndToEnd(t *testing.T) {
	const n = 103
	srv := serve(t, diamondsCSV(n, nil))
	dir := t.TempDir()

	res, err := PrepareDir(context.Background(), dir,
		WithSourceURL(srv.URL),
		WithSeed(42),
		WithLogger(quietLogger()),
	)
	require.NoError(t, err)

	// split sizes
	require.Equal(t, n, res.Full.NRows())
	assert.Equal(t, 82, res.Train.NRows()) // int(103 * 0.8)
	assert.Equal(t, n-82, res.Test.NRows())
	assert.Equal(t, uint64(42), res.Seed)
	_, err = uuid.Parse(res.RunID)
	assert.NoError(t, err, "run id is a uuid by default")
	assert.Zero(t, res.Dropped)

	// train and test partition the full frame
	union := append(prices(t, res.Train), prices(t, res.Test)...)
	assert.Equal(t, sorted(prices(t, res.Full)), sorted(union))
	assert.Equal(t, res.Full.Rows(), append(res.Train.Rows(), res.Test.Rows()...))

	// recoded ranges
	for _, tc := range []struct {
		column string
		max    int
	}{{CutColumn, 4}, {ColorColumn, 6}, {ClarityColumn, 7}} {
		values, err := res.Full.Column(tc.column)
		require.NoError(t, err)
		for _, v := range values {
			assert.True(t, v >= 0 && v <= float64(tc.max) && v == float64(int(v)), "%s=%v", tc.column, v)
		}
	}

	// sanitized names
	valid := regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	for _, name := range res.Full.Names() {
		assert.Regexp(t, valid, name)
	}
	assert.Equal(t, sourceHeader, res.Full.Names())

	// files on disk
	for _, key := range []string{TrainArtifact, TestArtifact, FeaturesArtifact, LabelsArtifact} {
		st, err := os.Stat(filepath.Join(dir, key))
		require.NoError(t, err, key)
		assert.Positive(t, st.Size(), key)
	}
	assert.NoFileExists(t, filepath.Join(dir, HistogramArtifact))
	require.Len(t, res.Artifacts, 4)

	train := readParquetFile(t, filepath.Join(dir, TrainArtifact))
	test := readParquetFile(t, filepath.Join(dir, TestArtifact))
	assert.Equal(t, n, train.NRows()+test.NRows())
	assert.Equal(t, sourceHeader, train.Names())
	assert.Equal(t, sourceHeader, test.Names())
	assert.Equal(t, prices(t, res.Train), prices(t, train))
	assert.Equal(t, prices(t, res.Test), prices(t, test))
	cutIdx := train.Index(CutColumn)
	require.GreaterOrEqual(t, cutIdx, 0)
	assert.Equal(t, dataset.Int, train.Columns()[cutIdx].Kind)

	// samples: same 20 rows, features without price and price alone
	features := readCSVFile(t, filepath.Join(dir, FeaturesArtifact))
	labels := readCSVFile(t, filepath.Join(dir, LabelsArtifact))
	assert.Equal(t, []string{"carat", "cut", "color", "clarity", "depth", "table", "x", "y", "z"}, features.Header)
	assert.Equal(t, []string{Target}, labels.Header)
	require.Len(t, features.Records, DefaultSampleSize)
	require.Len(t, labels.Records, DefaultSampleSize)

	full := prices(t, res.Full)
	carats, err := res.Full.Column("carat")
	require.NoError(t, err)
	for i := 0; i < DefaultSampleSize; i++ {
		assert.Equal(t, fmt.Sprint(full[i]), labels.Records[i][0])
		// carat identifies the same row in the feature sample
		assert.Equal(t, dataset.FormatValue(dataset.Float, carats[i]), features.Records[i][0])
	}
}

func TestPrepareSeedIsReproducible(t *testing.T) {
	srv := serve(t, diamondsCSV(50, nil))

	run := func(opts ...Option) *Result {
		opts = append(opts, WithSourceURL(srv.URL), WithLogger(quietLogger()))
		res, err := PrepareDir(context.Background(), t.TempDir(), opts...)
		require.NoError(t, err)
		return res
	}

	a := run(WithSeed(7))
	b := run(WithSeed(7))
	c := run(WithSeed(8))
	assert.Equal(t, a.Train.Rows(), b.Train.Rows())
	assert.Equal(t, a.Test.Rows(), b.Test.Rows())
	assert.NotEqual(t, a.Full.Rows(), c.Full.Rows())

	// a random run reports the seed that replays it
	r := run()
	replay := run(WithSeed(r.Seed))
	assert.Equal(t, r.Full.Rows(), replay.Full.Rows())

	// an injected generator is used as is
	d := run(WithRand(rand.New(rand.NewPCG(1, 2))))
	e := run(WithRand(rand.New(rand.NewPCG(1, 2))))
	assert.Equal(t, d.Full.Rows(), e.Full.Rows())
	assert.Zero(t, d.Seed)
}

func TestPrepareUnknownCategoryError(t *testing.T) {
	srv := serve(t, diamondsCSV(10, func(i int, rec []string) {
		if i == 6 {
			rec[1] = "Superb"
		}
	}))
	dir := t.TempDir()

	_, err := PrepareDir(context.Background(), dir, WithSourceURL(srv.URL), WithLogger(quietLogger()))
	var uce *errors.UnknownCategoryError
	require.True(t, errors.As(err, &uce), "got %v", err)
	assert.Equal(t, CutColumn, uce.Column)
	assert.Equal(t, "Superb", uce.Value)
	assert.Equal(t, 7, uce.Row)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no artifacts on failure")
}

func TestPrepareUnknownCategoryDrop(t *testing.T) {
	srv := serve(t, diamondsCSV(40, func(i int, rec []string) {
		switch i {
		case 3, 9:
			rec[2] = "K"
		case 12:
			rec[3] = "I2"
		}
	}))

	var (
		mu       sync.Mutex
		warnings []error
	)
	errors.SetWarningHandler(func(w error) {
		mu.Lock()
		defer mu.Unlock()
		warnings = append(warnings, w)
	})
	t.Cleanup(func() { errors.SetWarningHandler(func(error) {}) })

	logger, _ := log.NewTestLogger(log.LevelWarn)
	res, err := PrepareDir(context.Background(), t.TempDir(),
		WithSourceURL(srv.URL),
		WithUnknownPolicy(preprocessing.UnknownDrop),
		WithSeed(1),
		WithLogger(logger),
	)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Dropped)
	assert.Equal(t, 37, res.Full.NRows())
	assert.NotContains(t, prices(t, res.Full), 303.0)
	assert.NotContains(t, prices(t, res.Full), 309.0)
	assert.NotContains(t, prices(t, res.Full), 312.0)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, warnings, 2)
	var w *errors.UnknownCategoryWarning
	require.True(t, errors.As(warnings[0], &w))
	assert.Equal(t, errors.UnknownCategoryWarning{Column: ColorColumn, Value: "K", Rows: 2}, *w)
	require.True(t, errors.As(warnings[1], &w))
	assert.Equal(t, errors.UnknownCategoryWarning{Column: ClarityColumn, Value: "I2", Rows: 1}, *w)
	assert.True(t, logger.ContainsMessage("dropped rows with unknown category"))
	assert.True(t, logger.ContainsField(log.ValueKey, "K"))
	assert.True(t, logger.ContainsField(log.DroppedKey, 2.0))
}

func TestPrepareUnknownCategoryDropStillChecksRow(t *testing.T) {
	srv := serve(t, diamondsCSV(30, func(i int, rec []string) {
		if i == 2 {
			rec[1] = "Excellent"
			rec[6] = "not-a-price"
		}
	}))
	dir := t.TempDir()

	_, err := PrepareDir(context.Background(), dir,
		WithSourceURL(srv.URL),
		WithUnknownPolicy(preprocessing.UnknownDrop),
		WithLogger(quietLogger()),
	)
	var schemaErr *errors.SchemaError
	require.True(t, errors.As(err, &schemaErr), "got %v", err)
	assert.Equal(t, Target, schemaErr.Column)
	assert.Equal(t, 3, schemaErr.Row)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPrepareUnknownCategoryDropCountsEveryColumn(t *testing.T) {
	srv := serve(t, diamondsCSV(30, func(i int, rec []string) {
		switch i {
		case 2:
			rec[1] = "Excellent"
		case 4:
			rec[1] = "Excellent"
			rec[2] = "Z"
		}
	}))

	var (
		mu       sync.Mutex
		warnings []string
	)
	errors.SetWarningHandler(func(w error) {
		mu.Lock()
		defer mu.Unlock()
		var ucw *errors.UnknownCategoryWarning
		if errors.As(w, &ucw) {
			warnings = append(warnings, fmt.Sprintf("%s=%s:%d", ucw.Column, ucw.Value, ucw.Rows))
		}
	})
	t.Cleanup(func() { errors.SetWarningHandler(func(error) {}) })

	res, err := PrepareDir(context.Background(), t.TempDir(),
		WithSourceURL(srv.URL),
		WithUnknownPolicy(preprocessing.UnknownDrop),
		WithLogger(quietLogger()),
	)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Dropped)
	assert.Equal(t, 28, res.Full.NRows())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"cut=Excellent:2", "color=Z:1"}, warnings)
}

func TestPrepareSchemaErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		column string
	}{
		{
			name:   "missing column",
			body:   "carat,cut,color,clarity,depth,table,x,y,z\n0.2,Good,E,SI1,61,55,3,3,2\n",
			column: Target,
		},
		{
			name: "bad number",
			body: diamondsCSV(3, func(i int, rec []string) {
				if i == 1 {
					rec[0] = "heavy"
				}
			}),
			column: "carat",
		},
		{
			name: "fractional price",
			body: diamondsCSV(3, func(i int, rec []string) {
				if i == 2 {
					rec[6] = "326.5"
				}
			}),
			column: Target,
		},
		{
			name:   "names collide after sanitization",
			body:   withExtraColumn(diamondsCSV(3, nil), "x!", "1.0"),
			column: "x!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.body)
			_, err := PrepareDir(context.Background(), t.TempDir(), WithSourceURL(srv.URL), WithLogger(quietLogger()))
			var se *errors.SchemaError
			require.True(t, errors.As(err, &se), "got %v", err)
			assert.Equal(t, tt.column, se.Column)
		})
	}
}

func TestPrepareExtraColumnsAreSanitized(t *testing.T) {
	srv := serve(t, withExtraColumn(diamondsCSV(5, nil), "price per carat ($)", "1500.5"))

	res, err := PrepareDir(context.Background(), t.TempDir(), WithSourceURL(srv.URL), WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.Equal(t, "pricepercarat", res.Full.Names()[len(sourceHeader)])
}

func TestPrepareFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	dir := t.TempDir()
	rec := telemetry.NewRecorder()

	_, err := PrepareDir(context.Background(), dir, WithSourceURL(srv.URL), WithLogger(quietLogger()), WithRecorder(rec))
	var fe *errors.FetchError
	require.True(t, errors.As(err, &fe), "got %v", err)
	assert.Equal(t, http.StatusServiceUnavailable, fe.StatusCode)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPrepareEmptySource(t *testing.T) {
	srv := serve(t, diamondsCSV(0, nil))
	_, err := PrepareDir(context.Background(), t.TempDir(), WithSourceURL(srv.URL), WithLogger(quietLogger()))
	assert.True(t, errors.Is(err, errors.ErrEmptyData), "got %v", err)
}

func TestPrepareSmallDataset(t *testing.T) {
	srv := serve(t, diamondsCSV(6, nil))
	dir := t.TempDir()

	res, err := PrepareDir(context.Background(), dir, WithSourceURL(srv.URL), WithSeed(3), WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.Equal(t, 4, res.Train.NRows())
	assert.Equal(t, 2, res.Test.NRows())

	labels := readCSVFile(t, filepath.Join(dir, LabelsArtifact))
	assert.Len(t, labels.Records, 6, "sample holds every row when the dataset is small")
}

func TestPrepareOptions(t *testing.T) {
	srv := serve(t, diamondsCSV(30, nil))
	dir := t.TempDir()

	res, err := PrepareDir(context.Background(), dir,
		WithSourceURL(srv.URL),
		WithSeed(5),
		WithTrainFraction(0.5),
		WithSampleSize(4),
		WithHistogram(true),
		WithLogger(quietLogger()),
	)
	require.NoError(t, err)
	assert.Equal(t, 15, res.Train.NRows())
	require.Len(t, res.Artifacts, 5)
	assert.Equal(t, HistogramArtifact, res.Artifacts[4].Key)

	png, err := os.ReadFile(filepath.Join(dir, HistogramArtifact))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	features := readCSVFile(t, filepath.Join(dir, FeaturesArtifact))
	assert.Len(t, features.Records, 4)
}

func TestPrepareRejectsBadOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"fraction zero", WithTrainFraction(0)},
		{"fraction one", WithTrainFraction(1)},
		{"sample size", WithSampleSize(0)},
		{"policy", WithUnknownPolicy("ignore")},
		{"no source", WithSourceURL("")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Prepare(context.Background(), &memStore{}, tt.opt)
			var ve *errors.ValidationError
			assert.True(t, errors.As(err, &ve), "got %v", err)
		})
	}
}

// memStore keeps artifacts in memory.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	opts    map[string]blob.PutOptions
	failOn  string
}

func (m *memStore) Driver() blob.Driver { return "memory" }

func (m *memStore) Put(ctx context.Context, key string, r io.Reader, opts blob.PutOptions) (blob.Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key == m.failOn {
		return blob.Info{}, fmt.Errorf("disk full")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return blob.Info{}, err
	}
	if m.objects == nil {
		m.objects = make(map[string][]byte)
		m.opts = make(map[string]blob.PutOptions)
	}
	m.objects[key] = data
	m.opts[key] = opts
	return blob.Info{Key: key, Size: int64(len(data)), ContentType: opts.ContentType, Metadata: opts.Metadata}, nil
}

func (m *memStore) Get(ctx context.Context, key string) (blob.Info, io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return blob.Info{}, nil, blob.ErrNotFound
	}
	return blob.Info{Key: key, Size: int64(len(data))}, io.NopCloser(bytes.NewReader(data)), nil
}

func TestPrepareStoreMetadataAndTelemetry(t *testing.T) {
	srv := serve(t, diamondsCSV(25, nil))
	store := &memStore{}
	rec := telemetry.NewRecorder()

	res, err := Prepare(context.Background(), store,
		WithSourceURL(srv.URL),
		WithRunID("run-123"),
		WithRecorder(rec),
		WithLogger(quietLogger()),
	)
	require.NoError(t, err)
	assert.Equal(t, "run-123", res.RunID)

	for _, key := range []string{TrainArtifact, TestArtifact, FeaturesArtifact, LabelsArtifact} {
		opts, ok := store.opts[key]
		require.True(t, ok, key)
		assert.Equal(t, "run-123", opts.Metadata[MetaRunID], key)
	}
	assert.Equal(t, "20", store.opts[TrainArtifact].Metadata[MetaRows])
	assert.Equal(t, "text/csv", store.opts[FeaturesArtifact].ContentType)

	path := filepath.Join(t.TempDir(), "run.prom")
	require.NoError(t, rec.WriteTextfile(path))
	metrics, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `diamondprep_rows_total{stage="fetched"} 25`)
	assert.Contains(t, string(metrics), `diamondprep_rows_total{stage="train"} 20`)
	assert.Contains(t, string(metrics), "diamondprep_last_success_timestamp_seconds")
}

func TestPrepareStoreFailure(t *testing.T) {
	srv := serve(t, diamondsCSV(10, nil))
	store := &memStore{failOn: FeaturesArtifact}

	_, err := Prepare(context.Background(), store, WithSourceURL(srv.URL), WithLogger(quietLogger()))
	var we *errors.WriteError
	require.True(t, errors.As(err, &we), "got %v", err)
	assert.Equal(t, FeaturesArtifact, we.Artifact)
}

func TestPrepareLogsProgress(t *testing.T) {
	srv := serve(t, diamondsCSV(10, nil))
	logger, _ := log.NewTestLogger(log.LevelInfo)

	_, err := Prepare(context.Background(), &memStore{}, WithSourceURL(srv.URL), WithLogger(logger), WithRunID("r1"))
	require.NoError(t, err)

	for _, msg := range []string{"fetching source", "fetched source", "recoded categorical columns", "split dataset", "wrote artifact", "preparation complete"} {
		assert.True(t, logger.ContainsMessage(msg), msg)
	}
	assert.True(t, logger.ContainsField(log.RunIDKey, "r1"))
	assert.True(t, logger.ContainsField(log.ArtifactKey, LabelsArtifact))
}
