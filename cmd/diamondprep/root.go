package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/diamondprep/diamonds"
	"github.com/YuminosukeSato/diamondprep/pkg/blob"
	"github.com/YuminosukeSato/diamondprep/pkg/config"
	"github.com/YuminosukeSato/diamondprep/pkg/errors"
	"github.com/YuminosukeSato/diamondprep/pkg/fetch"
	"github.com/YuminosukeSato/diamondprep/pkg/log"
	"github.com/YuminosukeSato/diamondprep/pkg/telemetry"
)

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diamondprep <output-dir>",
		Short: "Prepare the diamonds dataset for training",
		Long: `Fetches the diamonds CSV, recodes cut, color and clarity to ordinal
integers, shuffles, splits 80/20 and writes:

  train_diamonds.parquet, test_diamonds.parquet,
  diamonds.csv (20 rows without price), diamond_prices.csv (their prices).

Every flag can also be set as DIAMONDPREP_<FLAG>, e.g. DIAMONDPREP_S3_BUCKET.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				return reportError(stderr, errors.Wrap(err, "usage: diamondprep <output-dir>"))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.RegisterFlags(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		v, err := config.New(cmd.Flags())
		if err != nil {
			return reportError(stderr, err)
		}
		cfg, err := config.Load(v, args[0])
		if err != nil {
			return reportError(stderr, err)
		}
		if err := log.SetupLogger(cfg.Logger.Level, stderr); err != nil {
			return reportError(stderr, err)
		}
		uninstall := log.InstallWarningSink(stderr)
		defer uninstall()

		err = errors.SafeExecute("prepare", func() error {
			return prepare(cmd.Context(), cfg, stdout)
		})
		var pe *errors.PanicError
		if errors.As(err, &pe) {
			slog.Error("preparation panicked", log.ErrAttr(err))
		}
		return err
	}

	cmd.AddCommand(newEvaluateCommand(stdout, stderr))
	return cmd
}

// reportError logs a failure that happened before the logger was configured.
func reportError(stderr io.Writer, err error) error {
	_ = log.SetupLogger("error", stderr)
	slog.Error("invalid invocation", log.ErrAttr(err))
	return err
}

func prepare(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	logger := log.GetLogger().With(log.ComponentKey, "cli")

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("open artifact store failed", err)
		return err
	}

	var recorder *telemetry.Recorder
	if cfg.Output.MetricsFile != "" {
		recorder = telemetry.NewRecorder()
	}

	opts := append(cfg.PrepareOptions(),
		diamonds.WithFetcher(fetch.New(cfg.Source.Timeout, fetch.WithLogger(log.GetLogger()))),
		diamonds.WithRecorder(recorder),
		diamonds.WithLogger(log.GetLogger()),
	)
	res, err := diamonds.Prepare(ctx, store, opts...)

	if recorder != nil {
		if werr := recorder.WriteTextfile(cfg.Output.MetricsFile); werr != nil {
			logger.Warn("writing metrics failed", log.ErrAttr(werr))
		}
	}
	if err != nil {
		logger.Error("preparation failed", err, log.StoreDriverKey, string(store.Driver()))
		return err
	}

	for _, a := range res.Artifacts {
		fmt.Fprintf(stdout, "%s\t%d\t%s\n", a.Key, a.Size, a.Location)
	}
	return nil
}

// openStore returns the output directory store, fanned out to S3 when a
// bucket is configured.
func openStore(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	fs, err := blob.NewFS(cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	if !cfg.S3.Enabled() {
		return fs, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	s3, err := blob.NewS3(ctx, blob.S3Config{
		Bucket:    cfg.S3.Bucket,
		Prefix:    cfg.S3.Prefix,
		Region:    cfg.S3.Region,
		Endpoint:  cfg.S3.Endpoint,
		PathStyle: cfg.S3.PathStyle,
	})
	if err != nil {
		return nil, err
	}
	return blob.Multi(fs, s3), nil
}
