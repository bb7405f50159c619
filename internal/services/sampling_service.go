package services

import (
	"context"
	"fmt"
	"io"

	"river-postproc/internal/csvio"
	"river-postproc/internal/models"
	"river-postproc/pkg/logging"
	"river-postproc/pkg/metrics"
)

// SamplingService rewrites observation-sampling schedules
type SamplingService struct {
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	out     io.Writer
}

// NewSamplingService creates a new sampling service
func NewSamplingService(logger *logging.StructuredLogger, metricsCollector *metrics.Collector, out io.Writer) *SamplingService {
	return &SamplingService{
		logger:  logger,
		metrics: metricsCollector,
		out:     out,
	}
}

// Collapse rewrites every sampled river of the schedule to a single sample at
// time t. Rivers that were never sampled are dropped.
func (s *SamplingService) Collapse(ctx context.Context, schedulePath string, t int64, outPath string) (models.RunSummary, error) {
	var summary models.RunSummary

	fmt.Fprintln(s.out, "Reading sampling schedule")
	records, err := csvio.ReadSamplingSchedule(schedulePath)
	if err != nil {
		return summary, err
	}
	summary.RowsIn = len(records)
	fmt.Fprintf(s.out, "- Number of river reaches: %d\n", len(records))

	fmt.Fprintf(s.out, "Collapsing samples to time %d\n", t)
	collapsed := CollapseSchedule(records, t)
	dropped := len(records) - len(collapsed)
	fmt.Fprintf(s.out, "- Number of sampled river reaches: %d\n", len(collapsed))

	s.logger.Info(ctx, "[SAMPLING_COLLAPSE] Schedule collapsed", logging.Fields{
		"rivers":  len(records),
		"kept":    len(collapsed),
		"dropped": dropped,
		"time":    t,
	})

	fmt.Fprintln(s.out, "Writing sampling schedule")
	if err := csvio.WriteSamplingSchedule(outPath, collapsed); err != nil {
		return summary, fmt.Errorf("failed to write sampling schedule: %w", err)
	}
	summary.RowsOut = len(collapsed)
	s.metrics.AddRows(ToolCollapseSampling, summary.RowsIn, summary.RowsOut)
	return summary, nil
}

// CollapseSchedule keeps the order of records and drops zero-count rivers
func CollapseSchedule(records []models.SamplingRecord, t int64) []models.SamplingRecord {
	out := make([]models.SamplingRecord, 0, len(records))
	for _, r := range records {
		if c, ok := r.CollapseTo(t); ok {
			out = append(out, c)
		}
	}
	return out
}
