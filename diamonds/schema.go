package diamonds

import (
	"github.com/YuminosukeSato/diamondprep/dataset"
	"github.com/YuminosukeSato/diamondprep/preprocessing"
)

// DefaultSourceURL is the pinned ggplot2 copy of the dataset.
const DefaultSourceURL = "https://raw.githubusercontent.com/tidyverse/ggplot2/4c678917/data-raw/diamonds.csv"

// Target is the label column.
const Target = "price"

// Categorical column names.
const (
	CutColumn     = "cut"
	ColorColumn   = "color"
	ClarityColumn = "clarity"
)

// Category orderings, lowest grade first. Each label's code is its index.
var (
	CutOrder   = []string{"Fair", "Good", "Very Good", "Premium", "Ideal"}
	ColorOrder = []string{"J", "I", "H", "G", "F", "E", "D"}

	// ClarityOrder keeps SI1 before SI2, VS1 before VS2 and VVS1 before VVS2.
	ClarityOrder = []string{"I1", "SI1", "SI2", "VS1", "VS2", "VVS1", "VVS2", "IF"}
)

// Encoders returns the ordinal encoders for cut, color and clarity.
func Encoders() []*preprocessing.OrdinalEncoder {
	return []*preprocessing.OrdinalEncoder{
		preprocessing.MustOrdinalEncoder(CutColumn, CutOrder...),
		preprocessing.MustOrdinalEncoder(ColorColumn, ColorOrder...),
		preprocessing.MustOrdinalEncoder(ClarityColumn, ClarityOrder...),
	}
}

// Schema describes the columns the source must provide, in source order.
// Extra source columns are accepted and decode as floats.
func Schema() dataset.Schema {
	enc := Encoders()
	return dataset.Schema{
		{Name: "carat", Kind: dataset.Float},
		{Name: CutColumn, Kind: dataset.Int, Convert: enc[0].Convert},
		{Name: ColorColumn, Kind: dataset.Int, Convert: enc[1].Convert},
		{Name: ClarityColumn, Kind: dataset.Int, Convert: enc[2].Convert},
		{Name: "depth", Kind: dataset.Float},
		{Name: "table", Kind: dataset.Float},
		{Name: Target, Kind: dataset.Int},
		{Name: "x", Kind: dataset.Float},
		{Name: "y", Kind: dataset.Float},
		{Name: "z", Kind: dataset.Float},
	}
}
