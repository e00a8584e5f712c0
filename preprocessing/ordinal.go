package preprocessing

import (
	"strings"

	"github.com/YuminosukeSato/diamondprep/pkg/errors"
)

// UnknownPolicy decides what happens to a value outside an encoder's categories.
type UnknownPolicy string

const (
	// UnknownError aborts with an UnknownCategoryError.
	UnknownError UnknownPolicy = "error"
	// UnknownDrop removes the row and raises an UnknownCategoryWarning.
	UnknownDrop UnknownPolicy = "drop"
)

// ParseUnknownPolicy validates a policy name.
func ParseUnknownPolicy(s string) (UnknownPolicy, error) {
	switch p := UnknownPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case UnknownError, UnknownDrop:
		return p, nil
	case "":
		return UnknownError, nil
	default:
		return "", errors.NewValidationError("unknown_categories", "must be one of error, drop", s)
	}
}

// OrdinalEncoder maps the labels of one categorical column onto 0..n-1 in
// the order given. The order is fixed at construction; there is no fitting.
type OrdinalEncoder struct {
	// Column is the column the encoder applies to, used in errors.
	Column string

	categories []string
	codes      map[string]int
}

// NewOrdinalEncoder creates an encoder for column whose categories are
// listed from lowest to highest.
//
// 使用例:
//
//	cut, err := preprocessing.NewOrdinalEncoder("cut",
//	    "Fair", "Good", "Very Good", "Premium", "Ideal")
//	code, err := cut.Encode("Premium") // 3
func NewOrdinalEncoder(column string, categories ...string) (*OrdinalEncoder, error) {
	if len(categories) == 0 {
		return nil, errors.NewValidationError("categories", "at least one category required", column)
	}
	codes := make(map[string]int, len(categories))
	for i, c := range categories {
		if _, dup := codes[c]; dup {
			return nil, errors.NewValidationError("categories", "duplicate category", c)
		}
		codes[c] = i
	}
	return &OrdinalEncoder{
		Column:     column,
		categories: append([]string(nil), categories...),
		codes:      codes,
	}, nil
}

// MustOrdinalEncoder is NewOrdinalEncoder for package-level tables; it panics
// on an invalid category list.
func MustOrdinalEncoder(column string, categories ...string) *OrdinalEncoder {
	enc, err := NewOrdinalEncoder(column, categories...)
	if err != nil {
		panic(err)
	}
	return enc
}

// Categories returns the ordered categories.
func (e *OrdinalEncoder) Categories() []string {
	return append([]string(nil), e.categories...)
}

// Len returns the number of categories; codes lie in [0, Len()).
func (e *OrdinalEncoder) Len() int {
	return len(e.categories)
}

// Encode returns the code of value. Matching is exact.
func (e *OrdinalEncoder) Encode(value string) (int, error) {
	code, ok := e.codes[value]
	if !ok {
		return 0, errors.NewUnknownCategoryError(e.Column, value, 0)
	}
	return code, nil
}

// Decode returns the category for code.
func (e *OrdinalEncoder) Decode(code int) (string, error) {
	if code < 0 || code >= len(e.categories) {
		return "", errors.NewValueError("OrdinalEncoder.Decode", "code out of range for column "+e.Column)
	}
	return e.categories[code], nil
}

// Convert adapts the encoder to a cell converter returning float64 codes.
func (e *OrdinalEncoder) Convert(raw string) (float64, error) {
	code, err := e.Encode(raw)
	return float64(code), err
}

// Transform encodes a whole column.
func (e *OrdinalEncoder) Transform(values []string) ([]int, error) {
	out := make([]int, len(values))
	for i, v := range values {
		code, ok := e.codes[v]
		if !ok {
			return nil, errors.NewUnknownCategoryError(e.Column, v, i+1)
		}
		out[i] = code
	}
	return out, nil
}
