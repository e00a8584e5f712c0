// Package diamondprep prepares the public diamonds dataset for price
// regression experiments.
//
// The work happens in a single pass: fetch the CSV, recode the graded
// columns to ordinal integers, shuffle, split and write the partitions as
// Parquet next to a small prediction sample.
//
// # Packages
//
//   - diamonds: the preparation pipeline (Prepare, PrepareDir)
//   - dataset: the gonum-backed Frame with its CSV and Parquet codecs
//   - preprocessing: ordinal encoding and column-name sanitization
//   - evaluate: regression scores for predictions made on the sample
//   - pkg/blob: artifact stores (directory, S3, fan-out)
//   - pkg/fetch, pkg/config, pkg/telemetry, pkg/report: supporting plumbing
//   - pkg/errors, pkg/log: error types, warnings and structured logging
//
// # Quick Start
//
//	res, err := diamonds.PrepareDir(ctx, "./data", diamonds.WithSeed(42))
//	if err != nil {
//	    slog.Error("prepare failed", log.ErrAttr(err))
//	    return
//	}
//	fmt.Println(res.Train.NRows(), res.Test.NRows())
//
// Or from the command line:
//
//	diamondprep ./data --seed 42 --histogram
//
// # Error Handling
//
// Failures carry a stack trace and a concrete type from pkg/errors
// (FetchError, SchemaError, UnknownCategoryError, WriteError) so callers
// can branch with errors.As.
package diamondprep
