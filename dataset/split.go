package dataset

import (
	"math/rand/v2"

	"github.com/YuminosukeSato/diamondprep/pkg/errors"
)

// Shuffle returns a uniformly permuted copy of f drawn from rng.
func Shuffle(f *Frame, rng *rand.Rand) *Frame {
	return f.Take(rng.Perm(f.NRows()))
}

// TrainCount returns how many of n rows go to the training partition:
// n*fraction truncated toward zero.
func TrainCount(n int, fraction float64) int {
	return int(float64(n) * fraction)
}

// TrainTestSplit splits f without reordering: the first TrainCount rows are
// train, the rest test. fraction must lie strictly between 0 and 1.
func TrainTestSplit(f *Frame, fraction float64) (train, test *Frame, err error) {
	if !(fraction > 0 && fraction < 1) {
		return nil, nil, errors.NewValidationError("train_fraction", "must be in (0, 1)", fraction)
	}
	n := f.NRows()
	cut := TrainCount(n, fraction)
	return f.Slice(0, cut), f.Slice(cut, n), nil
}
