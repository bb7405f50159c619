package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"river-postproc/internal/models"
)

func readAll(path string, fieldsPerRecord int) ([][]string, error) {
	if err := RequireFile(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = fieldsPerRecord
	var rows [][]string
	line := 0
	for {
		line++
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, models.NewInvalidInputError(fmt.Sprintf("Unable to read %s", path), errors.Wrapf(err, "line %d", line))
		}
		if line == 1 && len(row) > 0 {
			row[0] = strings.TrimPrefix(row[0], utf8BOM)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadStatistics loads a model-vs-gauge statistics table. All of RMSE, Bias,
// STDE, Qobsbar, Nash and rivid must be present; other columns are ignored.
func ReadStatistics(path string) ([]models.StatisticsRow, error) {
	rows, err := readAll(path, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, models.NewMissingFieldError(path, models.ColRivID)
	}

	index := make(map[string]int, len(rows[0]))
	for j, name := range rows[0] {
		index[strings.TrimSpace(name)] = j
	}
	for _, col := range models.StatisticsColumns {
		if _, ok := index[col]; !ok {
			return nil, models.NewMissingFieldError(path, col)
		}
	}

	out := make([]models.StatisticsRow, 0, len(rows)-1)
	for i, row := range rows[1:] {
		line := i + 2
		id, err := ParseID(row[index[models.ColRivID]])
		if err != nil {
			return nil, models.NewInvalidInputError(fmt.Sprintf("%s line %d has an invalid rivid", path, line), err)
		}

		rec := models.StatisticsRow{RivID: id}
		targets := []struct {
			col string
			dst *float64
		}{
			{models.ColRMSE, &rec.RMSE},
			{models.ColBias, &rec.Bias},
			{models.ColSTDE, &rec.STDE},
			{models.ColQobsbar, &rec.Qobsbar},
			{models.ColNash, &rec.Nash},
		}
		for _, tgt := range targets {
			v, err := ParseValue(row[index[tgt.col]])
			if err != nil {
				return nil, models.NewInvalidInputError(
					fmt.Sprintf("%s line %d column %s is not a number", path, line, tgt.col),
					errors.Wrapf(err, "line %d", line))
			}
			*tgt.dst = v
		}
		out = append(out, rec)
	}
	return out, nil
}

// WriteDigest writes the summary rows under the fixed digest header
func WriteDigest(path string, summary []models.SummaryRow) error {
	rows := [][]string{models.DigestHeader}
	for _, s := range summary {
		rows = append(rows, []string{
			s.Label,
			FormatFixed2(s.Metrics.NRMSE),
			FormatFixed2(s.Metrics.NBias),
			FormatFixed2(s.Metrics.NSTDE),
			FormatFixed2(s.Metrics.Nash),
		})
	}
	return WriteRows(path, rows)
}

// ReadSamplingSchedule loads a headerless rivid,count,t1,...,tcount table.
// Trailing empty cells are ignored.
func ReadSamplingSchedule(path string) ([]models.SamplingRecord, error) {
	rows, err := readAll(path, -1)
	if err != nil {
		return nil, err
	}

	records := make([]models.SamplingRecord, 0, len(rows))
	for i, row := range rows {
		line := i + 1
		for len(row) > 0 && strings.TrimSpace(row[len(row)-1]) == "" {
			row = row[:len(row)-1]
		}
		if len(row) == 0 {
			continue
		}
		if len(row) < 2 {
			return nil, models.NewInvalidInputError(fmt.Sprintf("%s line %d has no sample count", path, line), nil)
		}

		id, err := ParseID(row[0])
		if err != nil {
			return nil, models.NewInvalidInputError(fmt.Sprintf("%s line %d has an invalid rivid", path, line), err)
		}
		count, err := strconv.Atoi(strings.TrimSpace(row[1]))
		if err != nil {
			return nil, models.NewInvalidInputError(fmt.Sprintf("%s line %d has an invalid sample count", path, line), err)
		}

		rec := models.SamplingRecord{RivID: id, Count: count, Times: make([]int64, 0, len(row)-2)}
		for _, cell := range row[2:] {
			t, err := ParseID(cell)
			if err != nil {
				return nil, models.NewInvalidInputError(fmt.Sprintf("%s line %d has an invalid sample time", path, line), err)
			}
			rec.Times = append(rec.Times, t)
		}
		if err := rec.Validate(); err != nil {
			return nil, models.NewInvalidInputError(fmt.Sprintf("%s line %d is inconsistent", path, line), err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// WriteSamplingSchedule writes records as rivid,count,t1,...,tcount rows
func WriteSamplingSchedule(path string, records []models.SamplingRecord) error {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := []string{strconv.FormatInt(rec.RivID, 10), strconv.Itoa(rec.Count)}
		for _, t := range rec.Times {
			row = append(row, strconv.FormatInt(t, 10))
		}
		rows = append(rows, row)
	}
	return WriteRows(path, rows)
}

// ReadIDList loads reach identifiers from the first column. A first row that
// is not numeric is taken as a header.
func ReadIDList(path string) ([]int64, error) {
	rows, err := readAll(path, -1)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(rows))
	for i, row := range rows {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		id, err := ParseID(row[0])
		if err != nil {
			if i == 0 {
				continue
			}
			return nil, models.NewInvalidInputError(fmt.Sprintf("%s line %d has an invalid identifier", path, i+1), err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// WriteIDList writes one identifier per row
func WriteIDList(path string, ids []int64) error {
	rows := make([][]string, len(ids))
	for i, id := range ids {
		rows[i] = []string{strconv.FormatInt(id, 10)}
	}
	return WriteRows(path, rows)
}
