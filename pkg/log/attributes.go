// Standard attribute keys for diamondprep log records.
//
// Keys follow a dotted hierarchy ("data.samples", "artifact.key") so log
// pipelines can filter on a prefix.

package log

// Run context
const (
	// ComponentKey identifies the package emitting the record.
	// Examples: "diamonds", "fetch", "blob"
	ComponentKey = "run.component"

	// RunIDKey carries the per-run uuid.
	RunIDKey = "run.id"

	// PhaseKey names the preparation step.
	// Standard values are the Phase* constants below.
	PhaseKey = "run.phase"
)

// Data shape
const (
	// SamplesKey is the number of rows in the frame being processed.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of columns.
	FeaturesKey = "data.features"

	// TrainSamplesKey and TestSamplesKey describe the split.
	TrainSamplesKey = "data.train_samples"
	TestSamplesKey  = "data.test_samples"

	// DroppedKey counts rows removed by the unknown-category policy.
	DroppedKey = "data.dropped"

	// ColumnKey names a single column.
	ColumnKey = "data.column"

	// ValueKey is a single cell value, such as an unknown category.
	ValueKey = "data.value"
)

// Source and artifacts
const (
	// SourceURLKey is the location the dataset was read from.
	SourceURLKey = "source.url"

	// HTTPStatusKey is the status code of the source response.
	HTTPStatusKey = "http.status"

	// ArtifactKey is the store key of a written artifact.
	ArtifactKey = "artifact.key"

	// ArtifactSizeKey is the artifact size in bytes.
	ArtifactSizeKey = "artifact.size_bytes"

	// StoreDriverKey names the blob driver ("fs", "s3", "multi").
	StoreDriverKey = "artifact.driver"
)

// Configuration
const (
	// RandomSeedKey records the shuffle seed so a run can be replayed.
	RandomSeedKey = "config.random_seed"

	// TrainFractionKey records the split fraction.
	TrainFractionKey = "config.train_fraction"

	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"
)

// Phase values.
const (
	PhaseFetch    = "fetch"
	PhaseRecode   = "recode"
	PhaseShuffle  = "shuffle"
	PhaseSplit    = "split"
	PhaseWrite    = "write"
	PhasePublish  = "publish"
	PhaseEvaluate = "evaluate"
)
