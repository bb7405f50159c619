package cli

import (
	"context"
	"strconv"

	"river-postproc/internal/models"
	"river-postproc/internal/services"
)

// MonthlyAverage resamples a dated time series to monthly means
var MonthlyAverage = Tool{
	Name:    services.ToolMonthlyAverage,
	Usage:   "2 (<in.csv> <out.csv>)",
	MinArgs: 2,
	MaxArgs: 2,
	Run: func(ctx context.Context, env *Env, args []string) (models.RunSummary, error) {
		svc := services.NewTimeSeriesService(env.Logger, env.Metrics, env.Stdout)
		return svc.MonthlyAverage(ctx, args[0], args[1])
	},
}

// Concatenate joins time series sharing identical timestamps
var Concatenate = Tool{
	Name:    services.ToolConcatenate,
	Usage:   "at least 3 (<in1.csv> <in2.csv> [<in3.csv>...] <out.csv>)",
	MinArgs: 3,
	MaxArgs: Unbounded,
	Run: func(ctx context.Context, env *Env, args []string) (models.RunSummary, error) {
		svc := services.NewTimeSeriesService(env.Logger, env.Metrics, env.Stdout)
		return svc.Concatenate(ctx, args[:len(args)-1], args[len(args)-1])
	},
}

// Sum adds time series sharing identical timestamps
var Sum = Tool{
	Name:    services.ToolSum,
	Usage:   "at least 3 (<in1.csv> <in2.csv> [<in3.csv>...] <out.csv>)",
	MinArgs: 3,
	MaxArgs: Unbounded,
	Run: func(ctx context.Context, env *Env, args []string) (models.RunSummary, error) {
		svc := services.NewTimeSeriesService(env.Logger, env.Metrics, env.Stdout)
		return svc.Sum(ctx, args[:len(args)-1], args[len(args)-1])
	},
}

// DigestStatistics summarizes a statistics table over gauged reaches
var DigestStatistics = Tool{
	Name:    services.ToolDigestStatistics,
	Usage:   "3 (<stats.csv> <gauges.shp> <out.csv>)",
	MinArgs: 3,
	MaxArgs: 3,
	Run: func(ctx context.Context, env *Env, args []string) (models.RunSummary, error) {
		svc := services.NewStatisticsService(env.Logger, env.Metrics, env.Stdout)
		return svc.Digest(ctx, args[0], args[1], args[2])
	},
}

// CollapseSampling moves every sampled river to a single time index
var CollapseSampling = Tool{
	Name:    services.ToolCollapseSampling,
	Usage:   "3 (<schedule.csv> <time> <out.csv>)",
	MinArgs: 3,
	MaxArgs: 3,
	Run: func(ctx context.Context, env *Env, args []string) (models.RunSummary, error) {
		t, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return models.RunSummary{}, models.NewInvalidInputError("time must be an integer: "+args[1], err)
		}
		svc := services.NewSamplingService(env.Logger, env.Metrics, env.Stdout)
		return svc.Collapse(ctx, args[0], t, args[2])
	},
}

// TrimShapefile keeps the features whose attribute reaches a threshold
var TrimShapefile = Tool{
	Name:    services.ToolTrimShapefile,
	Usage:   "4 (<in.shp> <field> <threshold> <out.shp>)",
	MinArgs: 4,
	MaxArgs: 4,
	Run: func(ctx context.Context, env *Env, args []string) (models.RunSummary, error) {
		threshold, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return models.RunSummary{}, models.NewInvalidInputError("threshold must be a number: "+args[2], err)
		}
		svc := services.NewShapefileService(env.Logger, env.Metrics, env.Stdout)
		return svc.Trim(ctx, args[0], args[1], threshold, args[3])
	},
}

// DelineateCatchments builds one polygon per reach from D8 rasters
var DelineateCatchments = Tool{
	Name:    services.ToolDelineateCatchments,
	Usage:   "3 (<fdir.asc> <link.asc> <out.shp>)",
	MinArgs: 3,
	MaxArgs: 3,
	Run: func(ctx context.Context, env *Env, args []string) (models.RunSummary, error) {
		svc := services.NewCatchmentService(env.Logger, env.Metrics, env.Stdout)
		return svc.Delineate(ctx, args[0], args[1], args[2])
	},
}

// CalibrationSubset keeps the gauges present in a calibration shapefile
var CalibrationSubset = Tool{
	Name:    services.ToolCalibrationSubset,
	Usage:   "3 (<gauges.csv> <calibration.shp> <out.csv>)",
	MinArgs: 3,
	MaxArgs: 3,
	Run: func(ctx context.Context, env *Env, args []string) (models.RunSummary, error) {
		svc := services.NewShapefileService(env.Logger, env.Metrics, env.Stdout)
		return svc.CalibrationSubset(ctx, args[0], args[1], args[2])
	},
}

// CheckNetCDF fails when a river model output holds masked values
var CheckNetCDF = Tool{
	Name:    services.ToolCheckNetCDF,
	Usage:   "1 (<file.nc>)",
	MinArgs: 1,
	MaxArgs: 1,
	Run: func(ctx context.Context, env *Env, args []string) (models.RunSummary, error) {
		svc := services.NewNetCDFService(env.Logger, env.Metrics, env.Stdout)
		return svc.Check(ctx, args[0])
	},
}

// Tools lists every utility
var Tools = []Tool{
	MonthlyAverage,
	Concatenate,
	Sum,
	DigestStatistics,
	CollapseSampling,
	TrimShapefile,
	DelineateCatchments,
	CalibrationSubset,
	CheckNetCDF,
}
