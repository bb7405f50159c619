package services

// Tool names, used as binary names, metric labels and archive keys
const (
	ToolMonthlyAverage      = "monthly-average"
	ToolConcatenate         = "concatenate"
	ToolSum                 = "sum"
	ToolDigestStatistics    = "digest-statistics"
	ToolCollapseSampling    = "collapse-sampling"
	ToolTrimShapefile       = "trim-shapefile"
	ToolDelineateCatchments = "delineate-catchments"
	ToolCalibrationSubset   = "calibration-subset"
	ToolCheckNetCDF         = "check-netcdf"
)
