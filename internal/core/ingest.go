package core

// ingest.go turns an uploaded CSV into EquipmentRecord values.
//
// The whole input is rejected when it is not readable CSV (ParseError) or
// when a required column is absent (SchemaError). Individual rows with a
// missing required value are dropped without failing the batch. What happens
// to a row whose numeric cell cannot be coerced depends on NumericPolicy.

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// NumericPolicy decides how a non-numeric Flowrate/Pressure/Temperature is handled.
type NumericPolicy int

const (
	// NumericAbort fails the whole upload with a *RowError.
	NumericAbort NumericPolicy = iota
	// NumericDropRow drops the offending row and counts it as malformed.
	NumericDropRow
)

// String returns the config spelling of the policy.
func (p NumericPolicy) String() string {
	if p == NumericDropRow {
		return "drop"
	}
	return "abort"
}

// ParseNumericPolicy converts "abort" or "drop" to a NumericPolicy.
func ParseNumericPolicy(s string) (NumericPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "abort":
		return NumericAbort, nil
	case "drop":
		return NumericDropRow, nil
	default:
		return NumericAbort, fmt.Errorf("unknown numeric policy %q (want abort or drop)", s)
	}
}

// IngestOptions tunes ParseEquipmentCSV.
type IngestOptions struct {
	Numeric NumericPolicy
}

// IngestStats counts what happened to the rows of one CSV.
type IngestStats struct {
	Rows      int   `json:"rows"`      // Data rows read (blank lines excluded)
	Accepted  int   `json:"accepted"`  // Rows that became records
	Dropped   int   `json:"dropped"`   // Rows with a null required value
	Malformed int   `json:"malformed"` // Rows dropped for a bad number (NumericDropRow only)
	Bytes     int64 `json:"bytes"`     // Raw bytes consumed

	// Unclassified counts accepted records whose type is not one of
	// KnownTypes. Those records are kept with their type as uploaded.
	Unclassified int `json:"unclassified"`
}

// ParseEquipmentCSV validates r and returns the surviving records in source order.
// An empty result is not an error here; callers report it as ErrEmptyResult.
func ParseEquipmentCSV(r io.Reader, opts IngestOptions) ([]EquipmentRecord, error) {
	records, _, err := ParseEquipmentCSVWithStats(r, opts)
	return records, err
}

// ParseEquipmentCSVWithStats is ParseEquipmentCSV plus row accounting.
func ParseEquipmentCSVWithStats(r io.Reader, opts IngestOptions) ([]EquipmentRecord, IngestStats, error) {
	var stats IngestStats

	src, counter := WrapForIngest(r)

	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, stats, &ParseError{Err: errors.New("no columns to parse from file")}
	}
	if err != nil {
		return nil, stats, wrapReadError(err)
	}

	idx, err := ValidateHeaders(header)
	if err != nil {
		return nil, stats, err
	}

	var records []EquipmentRecord
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, wrapReadError(err)
		}
		line, _ := cr.FieldPos(0)
		stats.Rows++

		if len(row) > len(header) {
			return nil, stats, &ParseError{
				Line: line,
				Err:  fmt.Errorf("expected %d fields, saw %d", len(header), len(row)),
			}
		}

		rec, ok, err := buildRecord(row, idx, line, opts.Numeric)
		if err != nil {
			return nil, stats, err
		}
		if !ok {
			if rec == nil {
				stats.Dropped++
			} else {
				stats.Malformed++
			}
			continue
		}

		records = append(records, *rec)
		stats.Accepted++
		if _, known := ClassifyType(rec.Type); !known {
			stats.Unclassified++
		}
	}

	stats.Bytes = counter.BytesRead
	return records, stats, nil
}

// buildRecord converts one row. It returns ok=false with a nil record when a
// required value is null, and ok=false with a non-nil record when a number
// was malformed under NumericDropRow.
func buildRecord(row []string, idx HeaderIndex, line int, policy NumericPolicy) (*EquipmentRecord, bool, error) {
	var values [5]string
	for i, col := range RequiredColumns {
		v := idx.cell(row, col)
		if IsNullCell(v) {
			return nil, false, nil
		}
		values[i] = v
	}

	rec := &EquipmentRecord{
		Name: values[0],
		Type: values[1],
	}

	numeric := []struct {
		col string
		raw string
		dst *float64
	}{
		{ColFlowrate, values[2], &rec.Flowrate},
		{ColPressure, values[3], &rec.Pressure},
		{ColTemperature, values[4], &rec.Temperature},
	}
	for _, n := range numeric {
		f, err := ParseNumber(n.raw)
		if err != nil {
			if policy == NumericDropRow {
				return rec, false, nil
			}
			return nil, false, &RowError{Line: line, Column: n.col, Value: n.raw}
		}
		*n.dst = f
	}

	return rec, true, nil
}

// wrapReadError converts csv and encoding failures into a *ParseError.
func wrapReadError(err error) error {
	var csvErr *csv.ParseError
	if errors.As(err, &csvErr) {
		return &ParseError{Line: csvErr.Line, Err: csvErr.Err}
	}
	return &ParseError{Err: err}
}
