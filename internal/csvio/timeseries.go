// Package csvio reads and writes the CSV tables exchanged by the utilities.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"river-postproc/internal/models"
)

const utf8BOM = "\ufeff"

// FileExists reports whether path names an existing regular file
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// RequireFile returns a missing-file error when path does not exist
func RequireFile(path string) error {
	if !FileExists(path) {
		return models.NewMissingFileError(path)
	}
	return nil
}

// ReadTimeSeries loads a dated table whose first column is the timestamp
func ReadTimeSeries(path string) (*models.TimeSeries, error) {
	if err := RequireFile(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err == io.EOF {
		return nil, models.NewInvalidInputError(fmt.Sprintf("%s is empty", path), nil)
	}
	if err != nil {
		return nil, models.NewInvalidInputError(fmt.Sprintf("Unable to read the header of %s", path), err)
	}
	header[0] = strings.TrimPrefix(header[0], utf8BOM)

	ts := &models.TimeSeries{
		Source:     path,
		DateHeader: header[0],
		Columns:    append([]string(nil), header[1:]...),
	}

	line := 1
	for {
		line++
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, models.NewInvalidInputError(fmt.Sprintf("Unable to read %s", path), errors.Wrapf(err, "line %d", line))
		}

		t, err := ParseTimestamp(row[0])
		if err != nil {
			return nil, models.NewInvalidInputError(fmt.Sprintf("%s line %d has an invalid date", path, line), err)
		}

		values := make([]float64, len(row)-1)
		for j, cell := range row[1:] {
			v, err := ParseValue(cell)
			if err != nil {
				return nil, models.NewInvalidInputError(
					fmt.Sprintf("%s line %d column %s is not a number", path, line, ts.Columns[j]),
					errors.Wrapf(err, "line %d column %d", line, j+2))
			}
			values[j] = v
		}

		ts.Dates = append(ts.Dates, t)
		ts.Values = append(ts.Values, values)
	}

	return ts, nil
}

// WriteTimeSeries writes ts with its header row first
func WriteTimeSeries(path string, ts *models.TimeSeries) error {
	if err := ts.Validate(); err != nil {
		return errors.Wrap(err, path)
	}

	dateOnly := ts.AllMidnight()
	rows := make([][]string, 0, ts.NumRows()+1)
	rows = append(rows, append([]string{ts.DateHeader}, ts.Columns...))
	for i, d := range ts.Dates {
		row := make([]string, 0, ts.NumColumns()+1)
		row = append(row, FormatTimestamp(d, dateOnly))
		for _, v := range ts.Values[i] {
			row = append(row, FormatFloat(v))
		}
		rows = append(rows, row)
	}
	return WriteRows(path, rows)
}

// WriteRows writes raw records to a new CSV file
func WriteRows(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "Unable to create "+path)
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return errors.Wrap(err, path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, path)
	}
	return nil
}
