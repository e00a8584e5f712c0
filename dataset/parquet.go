package dataset

import (
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/YuminosukeSato/diamondprep/pkg/errors"
)

const (
	parquetSchemaName = "schema"
	parquetBatchRows  = 1024
)

// ParquetSchema maps a frame's columns to a flat Parquet schema: Float
// columns become required DOUBLE leaves, Int columns required INT64 leaves.
// Leaves keep the frame's column order.
func ParquetSchema(f *Frame) (*parquet.Schema, error) {
	fields := make([]reflect.StructField, f.NCols())
	for i, c := range f.columns {
		if c.Name == "-" || strings.ContainsAny(c.Name, ",\x00") {
			return nil, errors.NewSchemaError(c.Name, 0, "column name not representable in parquet")
		}
		typ := reflect.TypeOf(float64(0))
		if c.Kind == Int {
			typ = reflect.TypeOf(int64(0))
		}
		fields[i] = reflect.StructField{
			Name: "F" + strconv.Itoa(i),
			Type: typ,
			Tag:  reflect.StructTag("parquet:" + strconv.Quote(c.Name)),
		}
	}
	row := reflect.New(reflect.StructOf(fields)).Elem().Interface()
	return parquet.NewSchema(parquetSchemaName, parquet.SchemaOf(row)), nil
}

// WriteParquet writes f to w as a Snappy-compressed Parquet file.
func WriteParquet(w io.Writer, f *Frame) error {
	schema, err := ParquetSchema(f)
	if err != nil {
		return err
	}

	// leaf position -> frame column
	leaves := schema.Columns()
	order := make([]int, len(leaves))
	for leaf, path := range leaves {
		order[leaf] = f.Index(path[0])
	}

	writer := parquet.NewWriter(w, schema, parquet.Compression(&parquet.Snappy))
	batch := make([]parquet.Row, 0, parquetBatchRows)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := writer.WriteRows(batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for i := 0; i < f.NRows(); i++ {
		row := make(parquet.Row, len(order))
		for leaf, j := range order {
			v := f.At(i, j)
			var value parquet.Value
			if f.columns[j].Kind == Int {
				value = parquet.Int64Value(int64(v))
			} else {
				value = parquet.DoubleValue(v)
			}
			row[leaf] = value.Level(0, 0, leaf)
		}
		batch = append(batch, row)
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}
	return writer.Close()
}

// ReadParquet reads a flat Parquet file of DOUBLE and INT64 columns back into
// a Frame. Columns come back in the file's order.
func ReadParquet(r io.ReaderAt, size int64) (*Frame, error) {
	file, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, errors.Wrap(err, "open parquet")
	}

	schema := file.Schema()
	leaves := schema.Columns()
	columns := make([]Column, len(leaves))
	for i, path := range leaves {
		if len(path) != 1 {
			return nil, errors.NewSchemaError(path[len(path)-1], 0, "nested parquet columns are not supported")
		}
		leaf, ok := schema.Lookup(path...)
		if !ok {
			return nil, errors.NewSchemaError(path[0], 0, "parquet column not found")
		}
		kind := Float
		switch leaf.Node.Type().Kind() {
		case parquet.Int64, parquet.Int32:
			kind = Int
		case parquet.Double, parquet.Float:
		default:
			return nil, errors.NewSchemaError(path[0], 0, "unsupported parquet type "+leaf.Node.Type().String())
		}
		columns[i] = Column{Name: path[0], Kind: kind}
	}

	reader := parquet.NewReader(file)
	defer reader.Close()

	rows := make([][]float64, 0, reader.NumRows())
	buf := make([]parquet.Row, parquetBatchRows)
	for {
		n, err := reader.ReadRows(buf)
		for _, row := range buf[:n] {
			values := make([]float64, len(columns))
			for _, v := range row {
				switch v.Kind() {
				case parquet.Int64:
					values[v.Column()] = float64(v.Int64())
				case parquet.Int32:
					values[v.Column()] = float64(v.Int32())
				case parquet.Double:
					values[v.Column()] = v.Double()
				case parquet.Float:
					values[v.Column()] = float64(v.Float())
				}
			}
			rows = append(rows, values)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read parquet rows")
		}
		if n == 0 {
			break
		}
	}
	return NewFrame(columns, rows)
}
