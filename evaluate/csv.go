package evaluate

import (
	"io"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/diamondprep/dataset"
	"github.com/YuminosukeSato/diamondprep/pkg/errors"
)

// ReadColumn reads one numeric column from a CSV with a header row.
// An empty name selects the first column.
func ReadColumn(r io.Reader, name string) (*mat.VecDense, error) {
	raw, err := dataset.ReadCSV(r)
	if err != nil {
		return nil, err
	}
	j := 0
	if name != "" {
		j = -1
		for i, h := range raw.Header {
			if h == name {
				j = i
				break
			}
		}
		if j < 0 {
			return nil, errors.NewSchemaError(name, 0, "missing from header")
		}
	} else if len(raw.Header) > 0 {
		name = raw.Header[0]
	}
	if len(raw.Records) == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyData, "column %s", name)
	}

	values := make([]float64, len(raw.Records))
	for i, record := range raw.Records {
		v, err := dataset.ParseNumber(name, dataset.Float, record[j], i+1)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return mat.NewVecDense(len(values), values), nil
}
