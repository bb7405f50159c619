package models

import (
	"fmt"
	"math"
	"time"
)

// TimeSeries is a date-indexed table with one column per river reach.
// Missing values are stored as NaN.
type TimeSeries struct {
	Source     string
	DateHeader string
	Columns    []string
	Dates      []time.Time
	Values     [][]float64 // Values[row][column]
}

// NumRows returns the number of time steps
func (ts *TimeSeries) NumRows() int {
	return len(ts.Dates)
}

// NumColumns returns the number of value columns, excluding the date column
func (ts *TimeSeries) NumColumns() int {
	return len(ts.Columns)
}

// Column returns a copy of one value column
func (ts *TimeSeries) Column(j int) []float64 {
	out := make([]float64, len(ts.Values))
	for i, row := range ts.Values {
		out[i] = row[j]
	}
	return out
}

// SameIndex checks that other has exactly the same timestamp sequence
func (ts *TimeSeries) SameIndex(other *TimeSeries) error {
	if len(ts.Dates) != len(other.Dates) {
		return NewInconsistentIndexError(other.Source,
			fmt.Sprintf("%d time steps, expected %d as in %s", len(other.Dates), len(ts.Dates), ts.Source))
	}
	for i := range ts.Dates {
		if !ts.Dates[i].Equal(other.Dates[i]) {
			return NewInconsistentIndexError(other.Source,
				fmt.Sprintf("row %d is %s, expected %s as in %s", i+1,
					other.Dates[i].Format(time.RFC3339), ts.Dates[i].Format(time.RFC3339), ts.Source))
		}
	}
	return nil
}

// Validate checks the table shape
func (ts *TimeSeries) Validate() error {
	if len(ts.Values) != len(ts.Dates) {
		return &ValidationError{
			Field:   "values",
			Value:   fmt.Sprintf("%d", len(ts.Values)),
			Message: fmt.Sprintf("%d value rows for %d dates", len(ts.Values), len(ts.Dates)),
		}
	}
	for i, row := range ts.Values {
		if len(row) != len(ts.Columns) {
			return &ValidationError{
				Field:   "values",
				Value:   fmt.Sprintf("%d", len(row)),
				Message: fmt.Sprintf("row %d has %d values for %d columns", i+1, len(row), len(ts.Columns)),
			}
		}
	}
	return nil
}

// AllMidnight reports whether every timestamp falls on midnight, in which
// case dates are written without a clock part.
func (ts *TimeSeries) AllMidnight() bool {
	for _, d := range ts.Dates {
		h, m, s := d.Clock()
		if h != 0 || m != 0 || s != 0 || d.Nanosecond() != 0 {
			return false
		}
	}
	return true
}

// IsMissing reports whether v is a missing value
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}
