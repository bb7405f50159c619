// Command calibration-subset keeps the gauges present in a calibration shapefile.
//
// Usage:
//
//	calibration-subset <gauges.csv> <calibration.shp> <out.csv>
package main

import "river-postproc/internal/cli"

func main() {
	cli.Main(cli.CalibrationSubset)
}
