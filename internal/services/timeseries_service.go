package services

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"river-postproc/internal/csvio"
	"river-postproc/internal/models"
	"river-postproc/pkg/logging"
	"river-postproc/pkg/metrics"
)

// TimeSeriesService resamples and combines dated river tables
type TimeSeriesService struct {
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	out     io.Writer
}

// NewTimeSeriesService creates a new time series service
func NewTimeSeriesService(logger *logging.StructuredLogger, metricsCollector *metrics.Collector, out io.Writer) *TimeSeriesService {
	return &TimeSeriesService{
		logger:  logger,
		metrics: metricsCollector,
		out:     out,
	}
}

// MonthlyAverage writes the calendar-month means of the series in inPath
func (s *TimeSeriesService) MonthlyAverage(ctx context.Context, inPath, outPath string) (models.RunSummary, error) {
	var summary models.RunSummary

	fmt.Fprintln(s.out, "Reading input file")
	ts, err := csvio.ReadTimeSeries(inPath)
	if err != nil {
		return summary, err
	}
	summary.RowsIn = ts.NumRows()
	fmt.Fprintf(s.out, "- Number of time steps: %d\n", ts.NumRows())
	fmt.Fprintf(s.out, "- Number of river reaches: %d\n", ts.NumColumns())

	fmt.Fprintln(s.out, "Computing monthly averages")
	monthly := MonthlyMean(ts)
	fmt.Fprintf(s.out, "- Number of months: %d\n", monthly.NumRows())

	s.logger.Info(ctx, "[MONTHLY_AVERAGE] Series resampled to months", logging.Fields{
		"input":   inPath,
		"rows_in": ts.NumRows(),
		"months":  monthly.NumRows(),
		"columns": ts.NumColumns(),
	})

	fmt.Fprintln(s.out, "Writing output file")
	if err := csvio.WriteTimeSeries(outPath, monthly); err != nil {
		return summary, fmt.Errorf("failed to write monthly averages: %w", err)
	}
	summary.RowsOut = monthly.NumRows()
	s.metrics.AddRows(ToolMonthlyAverage, summary.RowsIn, summary.RowsOut)
	return summary, nil
}

// Concatenate joins the value columns of every input side by side
func (s *TimeSeriesService) Concatenate(ctx context.Context, inPaths []string, outPath string) (models.RunSummary, error) {
	var summary models.RunSummary

	series, err := s.readAll(inPaths)
	if err != nil {
		return summary, err
	}
	for _, ts := range series {
		summary.RowsIn += ts.NumRows()
	}

	fmt.Fprintln(s.out, "Concatenating")
	joined, err := ConcatenateSeries(series...)
	if err != nil {
		return summary, err
	}
	fmt.Fprintf(s.out, "- Number of time steps: %d\n", joined.NumRows())
	fmt.Fprintf(s.out, "- Number of river reaches: %d\n", joined.NumColumns())

	s.logger.Info(ctx, "[CONCATENATE] Series joined", logging.Fields{
		"inputs":  len(inPaths),
		"rows":    joined.NumRows(),
		"columns": joined.NumColumns(),
	})

	fmt.Fprintln(s.out, "Writing output file")
	if err := csvio.WriteTimeSeries(outPath, joined); err != nil {
		return summary, fmt.Errorf("failed to write concatenated series: %w", err)
	}
	summary.RowsOut = joined.NumRows()
	s.metrics.AddRows(ToolConcatenate, summary.RowsIn, summary.RowsOut)
	return summary, nil
}

// Sum adds the inputs element by element under the first input's headers
func (s *TimeSeriesService) Sum(ctx context.Context, inPaths []string, outPath string) (models.RunSummary, error) {
	var summary models.RunSummary

	series, err := s.readAll(inPaths)
	if err != nil {
		return summary, err
	}
	for _, ts := range series {
		summary.RowsIn += ts.NumRows()
	}

	fmt.Fprintln(s.out, "Summing")
	total, err := SumSeries(series...)
	if err != nil {
		return summary, err
	}
	missing := countMissing(total)
	if missing > 0 {
		fmt.Fprintf(s.out, "- Number of missing values in the sum: %d\n", missing)
	}

	s.logger.Info(ctx, "[SUM] Series summed", logging.Fields{
		"inputs":  len(inPaths),
		"rows":    total.NumRows(),
		"columns": total.NumColumns(),
		"missing": missing,
	})

	fmt.Fprintln(s.out, "Writing output file")
	if err := csvio.WriteTimeSeries(outPath, total); err != nil {
		return summary, fmt.Errorf("failed to write summed series: %w", err)
	}
	summary.RowsOut = total.NumRows()
	s.metrics.AddRows(ToolSum, summary.RowsIn, summary.RowsOut)
	return summary, nil
}

func (s *TimeSeriesService) readAll(paths []string) ([]*models.TimeSeries, error) {
	for _, p := range paths {
		if err := csvio.RequireFile(p); err != nil {
			return nil, err
		}
	}

	series := make([]*models.TimeSeries, 0, len(paths))
	for _, p := range paths {
		fmt.Fprintf(s.out, "Reading %s\n", p)
		ts, err := csvio.ReadTimeSeries(p)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(s.out, "- Number of time steps: %d\n", ts.NumRows())
		fmt.Fprintf(s.out, "- Number of river reaches: %d\n", ts.NumColumns())
		series = append(series, ts)
	}
	return series, nil
}

type monthKey struct {
	year  int
	month time.Month
}

func (k monthKey) next() monthKey {
	if k.month == time.December {
		return monthKey{k.year + 1, time.January}
	}
	return monthKey{k.year, k.month + 1}
}

func (k monthKey) before(o monthKey) bool {
	return k.year < o.year || (k.year == o.year && k.month < o.month)
}

// MonthlyMean groups rows by calendar month and averages the non-missing
// values of each column. A month holding a single row keeps that row's
// timestamp, so monthly data comes back unchanged; other months are labelled
// with their first day. Months without rows between the first and last one
// hold missing values.
func MonthlyMean(ts *models.TimeSeries) *models.TimeSeries {
	out := &models.TimeSeries{
		Source:     ts.Source,
		DateHeader: ts.DateHeader,
		Columns:    append([]string(nil), ts.Columns...),
	}
	if ts.NumRows() == 0 {
		return out
	}

	type accumulator struct {
		rows   int
		date   time.Time
		sums   []float64
		counts []int
	}
	ncols := ts.NumColumns()
	groups := make(map[monthKey]*accumulator)
	first := monthKey{ts.Dates[0].Year(), ts.Dates[0].Month()}
	last := first
	for i, d := range ts.Dates {
		key := monthKey{d.Year(), d.Month()}
		if key.before(first) {
			first = key
		}
		if last.before(key) {
			last = key
		}
		acc, ok := groups[key]
		if !ok {
			acc = &accumulator{date: d, sums: make([]float64, ncols), counts: make([]int, ncols)}
			groups[key] = acc
		}
		acc.rows++
		for j, v := range ts.Values[i] {
			if models.IsMissing(v) {
				continue
			}
			acc.sums[j] += v
			acc.counts[j]++
		}
	}

	for key := first; !last.before(key); key = key.next() {
		row := make([]float64, ncols)
		acc := groups[key]
		for j := range row {
			if acc == nil || acc.counts[j] == 0 {
				row[j] = math.NaN()
				continue
			}
			row[j] = acc.sums[j] / float64(acc.counts[j])
		}
		label := time.Date(key.year, key.month, 1, 0, 0, 0, 0, time.UTC)
		if acc != nil && acc.rows == 1 {
			label = acc.date
		}
		out.Dates = append(out.Dates, label)
		out.Values = append(out.Values, row)
	}
	return out
}

// ConcatenateSeries places the value columns of every series side by side.
// All series must share the first one's timestamps.
func ConcatenateSeries(series ...*models.TimeSeries) (*models.TimeSeries, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("no series to concatenate")
	}
	base := series[0]
	for _, ts := range series[1:] {
		if err := base.SameIndex(ts); err != nil {
			return nil, err
		}
	}

	out := &models.TimeSeries{
		Source:     base.Source,
		DateHeader: base.DateHeader,
		Dates:      append([]time.Time(nil), base.Dates...),
		Values:     make([][]float64, base.NumRows()),
	}
	for _, ts := range series {
		out.Columns = append(out.Columns, ts.Columns...)
	}
	for i := range out.Values {
		row := make([]float64, 0, len(out.Columns))
		for _, ts := range series {
			row = append(row, ts.Values[i]...)
		}
		out.Values[i] = row
	}
	return out, nil
}

// SumSeries adds the series element by element. All series must share the
// first one's timestamps and column count; a missing value in any input makes
// the sum missing.
func SumSeries(series ...*models.TimeSeries) (*models.TimeSeries, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("no series to sum")
	}
	base := series[0]
	for _, ts := range series[1:] {
		if err := base.SameIndex(ts); err != nil {
			return nil, err
		}
		if ts.NumColumns() != base.NumColumns() {
			return nil, models.NewFormatMismatchError(ts.Source,
				fmt.Sprintf("%d river reaches, expected %d as in %s", ts.NumColumns(), base.NumColumns(), base.Source))
		}
	}

	out := &models.TimeSeries{
		Source:     base.Source,
		DateHeader: base.DateHeader,
		Columns:    append([]string(nil), base.Columns...),
		Dates:      append([]time.Time(nil), base.Dates...),
		Values:     make([][]float64, base.NumRows()),
	}
	for i := range out.Values {
		row := make([]float64, base.NumColumns())
		for _, ts := range series {
			for j, v := range ts.Values[i] {
				row[j] += v
			}
		}
		out.Values[i] = row
	}
	return out, nil
}

func countMissing(ts *models.TimeSeries) int {
	n := 0
	for _, row := range ts.Values {
		for _, v := range row {
			if models.IsMissing(v) {
				n++
			}
		}
	}
	return n
}
