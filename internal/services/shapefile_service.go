package services

import (
	"context"
	"fmt"
	"io"

	"river-postproc/internal/csvio"
	"river-postproc/internal/gis"
	"river-postproc/internal/models"
	"river-postproc/pkg/logging"
	"river-postproc/pkg/metrics"
)

// ShapefileService filters shapefiles and matches ID lists against them
type ShapefileService struct {
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	out     io.Writer
}

// NewShapefileService creates a new shapefile service
func NewShapefileService(logger *logging.StructuredLogger, metricsCollector *metrics.Collector, out io.Writer) *ShapefileService {
	return &ShapefileService{
		logger:  logger,
		metrics: metricsCollector,
		out:     out,
	}
}

// Trim keeps the features whose numeric attribute field is at least threshold
func (s *ShapefileService) Trim(ctx context.Context, inPath, field string, threshold float64, outPath string) (models.RunSummary, error) {
	var summary models.RunSummary

	fmt.Fprintf(s.out, "Trimming %s on %s >= %s\n", inPath, field, csvio.FormatFloat(threshold))
	res, err := gis.TrimByAttribute(inPath, field, threshold, outPath)
	if err != nil {
		return summary, err
	}
	fmt.Fprintf(s.out, "- Number of features: %d\n", res.Total)
	fmt.Fprintf(s.out, "- Number of features kept: %d\n", res.Kept)

	s.logger.Info(ctx, "[SHAPEFILE_TRIM] Features filtered", logging.Fields{
		"input":     inPath,
		"field":     field,
		"threshold": threshold,
		"total":     res.Total,
		"kept":      res.Kept,
	})

	summary.RowsIn = res.Total
	summary.RowsOut = res.Kept
	s.metrics.RecordFeatures(ToolTrimShapefile, "kept", res.Kept)
	s.metrics.RecordFeatures(ToolTrimShapefile, "dropped", res.Total-res.Kept)
	s.metrics.AddRows(ToolTrimShapefile, summary.RowsIn, summary.RowsOut)
	return summary, nil
}

// CalibrationSubset writes the IDs of the gauge list, in list order, that
// appear in the rivid field of the calibration shapefile. A missing
// calibration shapefile exits with the optional-input code.
func (s *ShapefileService) CalibrationSubset(ctx context.Context, gaugesPath, calibrationPath, outPath string) (models.RunSummary, error) {
	var summary models.RunSummary

	if err := csvio.RequireFile(gaugesPath); err != nil {
		return summary, err
	}
	if !csvio.FileExists(calibrationPath) {
		return summary, &models.ToolError{
			Kind:    models.KindMissingFile,
			Code:    models.ExitMissingOptional,
			Message: fmt.Sprintf("Unable to open %s", calibrationPath),
		}
	}

	fmt.Fprintln(s.out, "Reading gauge list")
	ids, err := csvio.ReadIDList(gaugesPath)
	if err != nil {
		return summary, err
	}
	summary.RowsIn = len(ids)
	fmt.Fprintf(s.out, "- Number of gauges: %d\n", len(ids))

	fmt.Fprintln(s.out, "Reading calibration shapefile")
	calibration, err := gis.ReadIDSet(calibrationPath, models.AttrRivID)
	if err != nil {
		return summary, err
	}
	fmt.Fprintf(s.out, "- Number of calibration reaches: %d\n", len(calibration))

	subset := IntersectIDs(ids, calibration)
	fmt.Fprintf(s.out, "- Number of gauges used for calibration: %d\n", len(subset))

	s.logger.Info(ctx, "[CALIBRATION_SUBSET] Gauge list intersected", logging.Fields{
		"gauges":      len(ids),
		"calibration": len(calibration),
		"kept":        len(subset),
	})

	fmt.Fprintln(s.out, "Writing gauge subset")
	if err := csvio.WriteIDList(outPath, subset); err != nil {
		return summary, fmt.Errorf("failed to write gauge subset: %w", err)
	}
	summary.RowsOut = len(subset)
	s.metrics.AddRows(ToolCalibrationSubset, summary.RowsIn, summary.RowsOut)
	return summary, nil
}

// IntersectIDs keeps the ids present in set, in their original order
func IntersectIDs(ids []int64, set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
