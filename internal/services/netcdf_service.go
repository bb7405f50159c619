package services

import (
	"context"
	"fmt"
	"io"

	"river-postproc/internal/models"
	"river-postproc/internal/ncio"
	"river-postproc/pkg/logging"
	"river-postproc/pkg/metrics"
)

// maxReportedSteps bounds the list of offending time steps printed
const maxReportedSteps = 10

// NetCDFService validates river-model netCDF outputs
type NetCDFService struct {
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	out     io.Writer
}

// NewNetCDFService creates a new netCDF service
func NewNetCDFService(logger *logging.StructuredLogger, metricsCollector *metrics.Collector, out io.Writer) *NetCDFService {
	return &NetCDFService{
		logger:  logger,
		metrics: metricsCollector,
		out:     out,
	}
}

// Check fails when any value of the file's river variable is masked
func (s *NetCDFService) Check(ctx context.Context, path string) (models.RunSummary, error) {
	var summary models.RunSummary

	fmt.Fprintf(s.out, "Checking %s\n", path)
	res, err := ncio.Scan(path)
	if err != nil {
		return summary, err
	}
	fmt.Fprintf(s.out, "- Variable: %s\n", res.Variable)
	fmt.Fprintf(s.out, "- Number of river reaches (%s): %d\n", res.RiverDim, res.NRivers)
	fmt.Fprintf(s.out, "- Number of time steps (%s): %d\n", res.TimeDim, res.NTimes)

	summary.RowsIn = res.NTimes
	s.metrics.AddRows(ToolCheckNetCDF, res.NTimes, 0)
	s.metrics.NetCDFMaskedValues.Add(float64(res.Masked))

	s.logger.Info(ctx, "[NETCDF_CHECK] Variable scanned", logging.Fields{
		"file":        path,
		"variable":    res.Variable,
		"rivers":      res.NRivers,
		"time_steps":  res.NTimes,
		"masked":      res.Masked,
		"masked_time": len(res.MaskedByTime),
	})

	if res.Masked == 0 {
		fmt.Fprintln(s.out, "- No masked values")
		return summary, nil
	}

	steps := res.MaskedTimeSteps()
	fmt.Fprintf(s.out, "- Number of masked values: %d in %d time steps\n", res.Masked, len(steps))
	for i, t := range steps {
		if i == maxReportedSteps {
			fmt.Fprintf(s.out, "  ... and %d more time steps\n", len(steps)-maxReportedSteps)
			break
		}
		fmt.Fprintf(s.out, "  - time step %d: %d masked values\n", t, res.MaskedByTime[t])
	}
	return summary, models.NewUnrecoverableDataError(
		fmt.Sprintf("%s holds %d masked values in %s", path, res.Masked, res.Variable))
}
