package core

// validation.go provides header and cell validation for equipment CSVs.
//
// Validation happens at two levels:
//  1. Header validation: Ensures every required column is present
//  2. Cell validation: Decides whether a cell is null and coerces numbers
//
// Header names are matched exactly (case-sensitive). Null detection follows
// the conventions of common CSV tooling, so "NA", "N/A", "NaN", "null" and
// friends count as missing values the same way an empty cell does.

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Required CSV column names.
const (
	ColName        = "Equipment Name"
	ColType        = "Type"
	ColFlowrate    = "Flowrate"
	ColPressure    = "Pressure"
	ColTemperature = "Temperature"
)

// RequiredColumns lists the columns every equipment CSV must contain, in
// the order they are reported when missing.
var RequiredColumns = []string{ColName, ColType, ColFlowrate, ColPressure, ColTemperature}

// naTokens are cell values treated as null.
var naTokens = map[string]struct{}{
	"#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {},
	"N/A": {}, "NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {},
	"nan": {}, "null": {},
}

// HeaderIndex maps column names (exact) to their position in the CSV row.
type HeaderIndex map[string]int

// MakeHeaderIndex creates a HeaderIndex from a CSV header row.
// When a name repeats, the first occurrence wins.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		if _, seen := idx[h]; !seen {
			idx[h] = i
		}
	}
	return idx
}

// ValidateHeaders checks that all required columns exist in the CSV header.
// Returns the header index, or a *SchemaError naming every missing column.
func ValidateHeaders(header []string) (HeaderIndex, error) {
	idx := MakeHeaderIndex(header)

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}
	return idx, nil
}

// cell returns the trimmed value of column col, or "" if the row is short.
func (h HeaderIndex) cell(row []string, col string) string {
	pos, ok := h[col]
	if !ok || pos >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[pos])
}

// IsNullCell reports whether a (trimmed) cell value counts as missing.
func IsNullCell(s string) bool {
	if s == "" {
		return true
	}
	_, ok := naTokens[s]
	return ok
}

// ParseNumber coerces a cell to a finite float64.
// Only plain decimal and exponent notation is accepted; Go literal forms
// such as hex floats and digit separators are rejected.
func ParseNumber(s string) (float64, error) {
	if !isDecimalLiteral(s) {
		return 0, fmt.Errorf("invalid number format")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number format")
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("invalid number: value must be finite")
	}
	return f, nil
}

func isDecimalLiteral(s string) bool {
	t := strings.TrimLeft(s, "+-")
	if strings.ContainsRune(t, '_') {
		return false
	}
	return !strings.HasPrefix(t, "0x") && !strings.HasPrefix(t, "0X")
}
