// Package dataset provides the in-memory table used by the preparation
// pipeline together with its CSV and Parquet codecs.
//
// A Frame is an ordered list of typed columns over a row-major gonum matrix.
// Every selection (Take, Slice, Head, Select, Drop) copies, so derived frames
// never share storage with their parent.
package dataset

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/diamondprep/pkg/errors"
)

// Kind is the storage type of a column.
type Kind int

const (
	// Float columns hold arbitrary float64 values, NaN marks a missing cell.
	Float Kind = iota
	// Int columns hold integral values and serialize as 64-bit integers.
	Int
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	default:
		return "float"
	}
}

// Column describes one column of a Frame.
type Column struct {
	Name string
	Kind Kind
}

// Frame is an immutable table of numeric columns.
type Frame struct {
	columns []Column
	data    *mat.Dense // nil when the frame has no rows
}

// NewFrame builds a frame from row-major values. Each row must have one
// value per column and Int columns must hold integral values.
func NewFrame(columns []Column, rows [][]float64) (*Frame, error) {
	if len(columns) == 0 {
		return nil, errors.NewSchemaError("", 0, "frame needs at least one column")
	}
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if c.Name == "" {
			return nil, errors.NewSchemaError("", 0, "empty column name")
		}
		if _, dup := seen[c.Name]; dup {
			return nil, errors.NewSchemaError(c.Name, 0, "duplicate column name")
		}
		seen[c.Name] = struct{}{}
	}

	f := &Frame{columns: append([]Column(nil), columns...)}
	if len(rows) == 0 {
		return f, nil
	}

	ncols := len(columns)
	backing := make([]float64, 0, len(rows)*ncols)
	for i, row := range rows {
		if len(row) != ncols {
			return nil, errors.NewDimensionError("NewFrame", ncols, len(row), 1)
		}
		for j, v := range row {
			if columns[j].Kind == Int && !isIntegral(v) {
				return nil, errors.NewSchemaError(columns[j].Name, i+1, "non-integral value in int column")
			}
		}
		backing = append(backing, row...)
	}
	f.data = mat.NewDense(len(rows), ncols, backing)
	return f, nil
}

func isIntegral(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && math.Trunc(v) == v
}

// NRows returns the number of rows.
func (f *Frame) NRows() int {
	if f.data == nil {
		return 0
	}
	r, _ := f.data.Dims()
	return r
}

// NCols returns the number of columns.
func (f *Frame) NCols() int {
	return len(f.columns)
}

// Columns returns a copy of the column descriptors.
func (f *Frame) Columns() []Column {
	return append([]Column(nil), f.columns...)
}

// Names returns the column names in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column, or -1.
func (f *Frame) Index(name string) int {
	for i, c := range f.columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// At returns the value at row i, column j.
func (f *Frame) At(i, j int) float64 {
	return f.data.At(i, j)
}

// Row returns a copy of row i.
func (f *Frame) Row(i int) []float64 {
	return mat.Row(nil, i, f.data)
}

// Rows returns a copy of all rows.
func (f *Frame) Rows() [][]float64 {
	out := make([][]float64, f.NRows())
	for i := range out {
		out[i] = f.Row(i)
	}
	return out
}

// Column returns a copy of the named column's values.
func (f *Frame) Column(name string) ([]float64, error) {
	j := f.Index(name)
	if j < 0 {
		return nil, errors.NewSchemaError(name, 0, "no such column")
	}
	if f.data == nil {
		return []float64{}, nil
	}
	return mat.Col(nil, j, f.data), nil
}

// Vec returns the named column as a gonum vector.
func (f *Frame) Vec(name string) (*mat.VecDense, error) {
	col, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	if len(col) == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyData, "column %s", name)
	}
	return mat.NewVecDense(len(col), col), nil
}

// Take returns a new frame holding the given rows in the given order.
func (f *Frame) Take(indices []int) *Frame {
	out := &Frame{columns: f.Columns()}
	if len(indices) == 0 {
		return out
	}
	out.data = mat.NewDense(len(indices), f.NCols(), nil)
	for k, i := range indices {
		out.data.SetRow(k, f.data.RawRowView(i))
	}
	return out
}

// Slice returns a copy of rows [start, end).
func (f *Frame) Slice(start, end int) *Frame {
	out := &Frame{columns: f.Columns()}
	if start >= end {
		return out
	}
	out.data = mat.DenseCopyOf(f.data.Slice(start, end, 0, f.NCols()))
	return out
}

// Head returns a copy of the first n rows, or of every row when the frame is shorter.
func (f *Frame) Head(n int) *Frame {
	return f.Slice(0, min(n, f.NRows()))
}

// Select returns a frame with only the named columns, in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	if len(names) == 0 {
		return nil, errors.NewSchemaError("", 0, "no columns selected")
	}
	idx := make([]int, len(names))
	cols := make([]Column, len(names))
	for k, name := range names {
		j := f.Index(name)
		if j < 0 {
			return nil, errors.NewSchemaError(name, 0, "no such column")
		}
		idx[k] = j
		cols[k] = f.columns[j]
	}

	out := &Frame{columns: cols}
	if f.data == nil {
		return out, nil
	}
	out.data = mat.NewDense(f.NRows(), len(cols), nil)
	for k, j := range idx {
		out.data.SetCol(k, mat.Col(nil, j, f.data))
	}
	return out, nil
}

// Drop returns a frame without the named columns.
func (f *Frame) Drop(names ...string) (*Frame, error) {
	drop := make(map[string]struct{}, len(names))
	for _, name := range names {
		if f.Index(name) < 0 {
			return nil, errors.NewSchemaError(name, 0, "no such column")
		}
		drop[name] = struct{}{}
	}
	keep := make([]string, 0, f.NCols())
	for _, c := range f.columns {
		if _, ok := drop[c.Name]; !ok {
			keep = append(keep, c.Name)
		}
	}
	return f.Select(keep...)
}

// WithNames returns a copy of the frame with every column renamed.
func (f *Frame) WithNames(names []string) (*Frame, error) {
	if len(names) != f.NCols() {
		return nil, errors.NewDimensionError("WithNames", f.NCols(), len(names), 1)
	}
	cols := f.Columns()
	for i := range cols {
		cols[i].Name = names[i]
	}
	return NewFrame(cols, f.Rows())
}
