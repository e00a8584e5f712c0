package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/diamondprep/pkg/errors"
)

func TestToLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ToLogLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetupLoggerWritesCloudLoggingKeys(t *testing.T) {
	prev := GetLogger()
	prevSlog := slog.Default()
	defer func() {
		SetLogger(prev)
		slog.SetDefault(prevSlog)
	}()

	var buf bytes.Buffer
	require.NoError(t, SetupLogger("info", &buf))

	GetLogger().Debug("hidden")
	GetLogger().With(ComponentKey, "diamonds").Info("Downloaded source", SamplesKey, 53940)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry["severity"])
	assert.Equal(t, "Downloaded source", entry["message"])
	assert.Equal(t, "diamonds", entry[ComponentKey])
	assert.Equal(t, 53940.0, entry[SamplesKey])
	assert.Contains(t, entry, "logging.googleapis.com/sourceLocation")
}

func TestErrorLogsCarryStacktrace(t *testing.T) {
	var buf bytes.Buffer
	handler := WrapByErrFmtHandler(slog.NewJSONHandler(&buf, nil))
	logger := NewSlogLogger(slog.New(handler))

	err := errors.NewSchemaError("price", 7, "not a number")
	logger.Error("Preparation failed", err, ArtifactKey, "train_diamonds.parquet")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Contains(t, entry[ErrAttrKey], "schema mismatch")
	assert.Equal(t, "train_diamonds.parquet", entry[ArtifactKey])
	assert.Contains(t, entry[StacktraceAttrKey], "logger_test.go")
	assert.Equal(t, "*errors.SchemaError", entry[ErrTypeAttrKey])
}

func TestInstallWarningSink(t *testing.T) {
	var buf bytes.Buffer
	uninstall := InstallWarningSink(&buf)
	defer uninstall()

	errors.Warn(errors.NewUnknownCategoryWarning("cut", "Superb", 3))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "cut", entry["column"])
	assert.Equal(t, "Superb", entry["value"])
	assert.Equal(t, 3.0, entry["rows"])
	assert.Equal(t, "UnknownCategoryWarning", entry["type"])
}

func TestTestLogger(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelInfo)

	testLogger.Debug("debug message")
	ctxLogger := testLogger.With(ComponentKey, "fetch")
	ctxLogger.Info("info message", SamplesKey, 20)
	ctxLogger.Error("error message", fmt.Errorf("boom"), ArtifactKey, "diamonds.csv")

	assert.NotEmpty(t, buffer.String())
	assert.False(t, testLogger.ContainsMessage("debug message"))
	assert.True(t, testLogger.ContainsMessage("info message"))
	assert.True(t, testLogger.ContainsField(ComponentKey, "fetch"))
	assert.True(t, testLogger.ContainsField(SamplesKey, 20.0))
	assert.True(t, testLogger.ContainsField(ErrAttrKey, "boom"))
	assert.True(t, testLogger.ContainsField(ArtifactKey, "diamonds.csv"))

	entries, err := testLogger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	assert.False(t, testLogger.Enabled(context.Background(), LevelDebug))
	assert.True(t, testLogger.Enabled(context.Background(), LevelWarn))
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(99).String())
}
