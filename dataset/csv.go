package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/diamondprep/pkg/errors"
)

// RawTable is a CSV file as read: a header row and string records.
type RawTable struct {
	Header  []string
	Records [][]string
}

// ReadCSV reads a header row followed by records. Every record must have
// as many fields as the header.
func ReadCSV(r io.Reader) (*RawTable, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewSchemaError("", 0, "empty input: no header row")
	}
	if err != nil {
		return nil, readError(err, 0)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	table := &RawTable{Header: header}
	for row := 1; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, readError(err, row)
		}
		table.Records = append(table.Records, record)
	}
	return table, nil
}

// readError reports malformed CSV as a schema error and passes reader
// failures (a broken download, say) through unchanged.
func readError(err error, row int) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return errors.NewSchemaError("", row, pe.Err.Error())
	}
	return errors.Wrap(err, "read csv")
}

// Converter turns a raw cell into a numeric value.
type Converter func(raw string) (float64, error)

// Field declares how one source column is decoded.
// A nil Convert parses the cell as a number of the field's Kind.
type Field struct {
	Name    string
	Kind    Kind
	Convert Converter
}

// Schema lists the columns a source must provide.
type Schema []Field

// DecodeErrorFunc decides what happens to a cell that fails conversion.
// Returning nil drops the row; returning an error aborts the decode with it.
// A dropped row's remaining cells are still decoded, so the callback sees
// every failing cell of the row. row is the 1-based data row (the header
// is row 0).
type DecodeErrorFunc func(row int, column string, err error) error

// Decode converts a raw table into a Frame. Output columns follow the source
// header order. Every schema field must appear in the header; header columns
// the schema does not mention decode as Float. With a nil onError the first
// conversion failure aborts the decode.
func Decode(raw *RawTable, schema Schema, onError DecodeErrorFunc) (*Frame, error) {
	fields := make(map[string]Field, len(schema))
	for _, f := range schema {
		fields[f.Name] = f
	}

	present := make(map[string]struct{}, len(raw.Header))
	columns := make([]Column, len(raw.Header))
	decoders := make([]Field, len(raw.Header))
	for j, name := range raw.Header {
		if _, dup := present[name]; dup {
			return nil, errors.NewSchemaError(name, 0, "duplicate column in source header")
		}
		present[name] = struct{}{}

		field, ok := fields[name]
		if !ok {
			field = Field{Name: name, Kind: Float}
		}
		columns[j] = Column{Name: name, Kind: field.Kind}
		decoders[j] = field
	}
	for _, f := range schema {
		if _, ok := present[f.Name]; !ok {
			return nil, errors.NewSchemaError(f.Name, 0, "missing from source header")
		}
	}

	rows := make([][]float64, 0, len(raw.Records))
	for i, record := range raw.Records {
		row := i + 1
		if len(record) != len(columns) {
			return nil, errors.NewSchemaError("", row, "wrong number of fields")
		}

		values := make([]float64, len(columns))
		keep := true
		for j, cell := range record {
			v, err := decodeCell(decoders[j], cell, row)
			if err != nil {
				if onError == nil {
					return nil, err
				}
				if abort := onError(row, decoders[j].Name, err); abort != nil {
					return nil, abort
				}
				keep = false
				continue
			}
			values[j] = v
		}
		if keep {
			rows = append(rows, values)
		}
	}
	return NewFrame(columns, rows)
}

func decodeCell(field Field, cell string, row int) (float64, error) {
	if field.Convert != nil {
		v, err := field.Convert(cell)
		if err != nil {
			return 0, err
		}
		if field.Kind == Int && !isIntegral(v) {
			return 0, errors.NewSchemaError(field.Name, row, "converter produced a non-integral value")
		}
		return v, nil
	}
	return ParseNumber(field.Name, field.Kind, cell, row)
}

// ParseNumber parses one numeric cell. Empty, NA and NaN cells become NaN in
// Float columns and are rejected in Int columns.
func ParseNumber(column string, kind Kind, cell string, row int) (float64, error) {
	s := strings.TrimSpace(cell)
	if s == "" || s == "NA" || s == "NaN" {
		if kind == Int {
			return 0, errors.NewSchemaError(column, row, "missing value in int column")
		}
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.NewSchemaError(column, row, "not a number: "+strconv.Quote(cell))
	}
	if kind == Int && !isIntegral(v) {
		return 0, errors.NewSchemaError(column, row, "non-integral value "+strconv.Quote(cell))
	}
	return v, nil
}

// WriteCSV writes f with a header row and no index column. Int columns are
// written as integers, Float columns keep a decimal point, NaN is written
// as an empty cell.
func WriteCSV(w io.Writer, f *Frame) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(f.Names()); err != nil {
		return err
	}

	record := make([]string, f.NCols())
	for i := 0; i < f.NRows(); i++ {
		for j, c := range f.columns {
			record[j] = FormatValue(c.Kind, f.At(i, j))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// FormatValue renders one cell the way WriteCSV does.
func FormatValue(kind Kind, v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	if kind == Int {
		return strconv.FormatInt(int64(v), 10)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !math.IsInf(v, 0) && !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
