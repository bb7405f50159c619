package models

import "math"

// Required columns of a model-vs-gauge statistics table
const (
	ColRivID   = "rivid"
	ColRMSE    = "RMSE"
	ColBias    = "Bias"
	ColSTDE    = "STDE"
	ColQobsbar = "Qobsbar"
	ColNash    = "Nash"
)

// StatisticsColumns lists the statistics table columns in the order they are checked
var StatisticsColumns = []string{ColRMSE, ColBias, ColSTDE, ColQobsbar, ColNash, ColRivID}

// Required attributes of a gauge shapefile
const (
	AttrStationName = "Sttn_Nm"
	AttrRivID       = "rivid"
)

// Summary row labels of a digest
const (
	LabelMean   = "mean"
	LabelMedian = "median"
	Label68     = "68%"
)

// DigestHeader is the header of a digest file; the label column is unnamed
var DigestHeader = []string{"", "nRMSE", "nBias", "nSTDE", "Nash"}

// StatisticsRow is one reach of a statistics table
type StatisticsRow struct {
	RivID   int64
	RMSE    float64
	Bias    float64
	STDE    float64
	Qobsbar float64
	Nash    float64
}

// NormalizedMetrics are the error metrics scaled by the observed mean flow
type NormalizedMetrics struct {
	NRMSE float64
	NBias float64
	NSTDE float64
	Nash  float64
}

// Normalize divides RMSE, Bias and STDE by Qobsbar and passes Nash through
func (r StatisticsRow) Normalize() NormalizedMetrics {
	return NormalizedMetrics{
		NRMSE: r.RMSE / r.Qobsbar,
		NBias: r.Bias / r.Qobsbar,
		NSTDE: r.STDE / r.Qobsbar,
		Nash:  r.Nash,
	}
}

// SummaryRow is one labelled row of a digest as written to disk
type SummaryRow struct {
	Label   string
	Metrics NormalizedMetrics
}

// DigestRow is one summary row of a digest as archived
type DigestRow struct {
	Label string   `json:"label" db:"label"`
	NRMSE *float64 `json:"nrmse" db:"nrmse"`
	NBias *float64 `json:"nbias" db:"nbias"`
	NSTDE *float64 `json:"nstde" db:"nstde"`
	Nash  *float64 `json:"nash" db:"nash"`
}

// NewDigestRow builds an archived row; NaN and infinite values become nil
func NewDigestRow(label string, m NormalizedMetrics) DigestRow {
	return DigestRow{
		Label: label,
		NRMSE: finiteOrNil(m.NRMSE),
		NBias: finiteOrNil(m.NBias),
		NSTDE: finiteOrNil(m.NSTDE),
		Nash:  finiteOrNil(m.Nash),
	}
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
