package services

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"

	"river-postproc/internal/csvio"
	"river-postproc/internal/gis"
	"river-postproc/internal/models"
	"river-postproc/pkg/logging"
	"river-postproc/pkg/metrics"
)

// Quantiles of the third digest row. Nash is larger-is-better so its tail is
// taken from the other side.
const (
	errorQuantile = 0.68
	nashQuantile  = 0.32
)

// StatisticsService digests model-vs-gauge statistics tables
type StatisticsService struct {
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	out     io.Writer
}

// NewStatisticsService creates a new statistics service
func NewStatisticsService(logger *logging.StructuredLogger, metricsCollector *metrics.Collector, out io.Writer) *StatisticsService {
	return &StatisticsService{
		logger:  logger,
		metrics: metricsCollector,
		out:     out,
	}
}

// Digest subsets the statistics table to the reaches of the gauge shapefile
// and writes the mean, median and 68% rows of the normalized metrics.
func (s *StatisticsService) Digest(ctx context.Context, statsPath, gaugesPath, outPath string) (models.RunSummary, error) {
	var summary models.RunSummary

	for _, p := range []string{statsPath, gaugesPath} {
		if err := csvio.RequireFile(p); err != nil {
			return summary, err
		}
	}

	fmt.Fprintln(s.out, "Reading statistics table")
	rows, err := csvio.ReadStatistics(statsPath)
	if err != nil {
		return summary, err
	}
	summary.RowsIn = len(rows)
	fmt.Fprintf(s.out, "- Number of river reaches: %d\n", len(rows))

	fmt.Fprintln(s.out, "Reading gauge shapefile")
	gauges, err := gis.ReadIDSet(gaugesPath, models.AttrRivID, models.AttrStationName)
	if err != nil {
		return summary, err
	}
	fmt.Fprintf(s.out, "- Number of gauges: %d\n", len(gauges))

	fmt.Fprintln(s.out, "Subsetting statistics table")
	subset := SubsetByIDs(rows, gauges)
	fmt.Fprintf(s.out, "- Number of river reaches kept: %d\n", len(subset))

	s.logger.Info(ctx, "[DIGEST_SUBSET] Statistics table subset", logging.Fields{
		"rows":   len(rows),
		"gauges": len(gauges),
		"kept":   len(subset),
	})
	if len(subset) == 0 {
		fmt.Fprintln(s.out, "WARNING - No river reach of the statistics table matches a gauge")
		s.logger.Warn(ctx, "[DIGEST_EMPTY] No gauge matches the statistics table", logging.Fields{
			"statistics": statsPath,
			"gauges":     gaugesPath,
		})
	}

	fmt.Fprintln(s.out, "Computing summary")
	digest := Summarize(subset)
	for _, row := range digest {
		fmt.Fprintf(s.out, "- %-6s nRMSE %s, nBias %s, nSTDE %s, Nash %s\n", row.Label,
			csvio.FormatFixed2(row.Metrics.NRMSE), csvio.FormatFixed2(row.Metrics.NBias),
			csvio.FormatFixed2(row.Metrics.NSTDE), csvio.FormatFixed2(row.Metrics.Nash))
	}

	fmt.Fprintln(s.out, "Writing digest")
	if err := csvio.WriteDigest(outPath, digest); err != nil {
		return summary, fmt.Errorf("failed to write digest: %w", err)
	}

	summary.RowsOut = len(digest)
	for _, row := range digest {
		summary.Digest = append(summary.Digest, models.NewDigestRow(row.Label, row.Metrics))
	}
	s.metrics.AddRows(ToolDigestStatistics, summary.RowsIn, summary.RowsOut)
	return summary, nil
}

// SubsetByIDs keeps the rows whose reach is in ids, in table order
func SubsetByIDs(rows []models.StatisticsRow, ids map[int64]struct{}) []models.StatisticsRow {
	out := make([]models.StatisticsRow, 0, len(rows))
	for _, r := range rows {
		if _, ok := ids[r.RivID]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Summarize returns the mean, median and 68% rows of the normalized metrics.
// An empty subset yields NaN everywhere.
func Summarize(rows []models.StatisticsRow) []models.SummaryRow {
	var nrmse, nbias, nstde, nash []float64
	for _, r := range rows {
		m := r.Normalize()
		nrmse = append(nrmse, m.NRMSE)
		nbias = append(nbias, m.NBias)
		nstde = append(nstde, m.NSTDE)
		nash = append(nash, m.Nash)
	}

	return []models.SummaryRow{
		{Label: models.LabelMean, Metrics: models.NormalizedMetrics{
			NRMSE: Mean(nrmse), NBias: Mean(nbias), NSTDE: Mean(nstde), Nash: Mean(nash),
		}},
		{Label: models.LabelMedian, Metrics: models.NormalizedMetrics{
			NRMSE: Quantile(nrmse, 0.5), NBias: Quantile(nbias, 0.5), NSTDE: Quantile(nstde, 0.5), Nash: Quantile(nash, 0.5),
		}},
		{Label: models.Label68, Metrics: models.NormalizedMetrics{
			NRMSE: Quantile(nrmse, errorQuantile),
			NBias: Quantile(nbias, errorQuantile),
			NSTDE: Quantile(nstde, errorQuantile),
			Nash:  Quantile(nash, nashQuantile),
		}},
	}
}

// Mean returns the arithmetic mean of the non-NaN values, or NaN for none
func Mean(values []float64) float64 {
	sum, n := 0.0, 0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// Quantile interpolates linearly between order statistics at position
// q*(n-1). NaN values are skipped; no values yields NaN.
func Quantile(values []float64, q float64) float64 {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return math.NaN()
	}
	sort.Float64s(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
