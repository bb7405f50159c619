// Command monthly-average resamples a dated river time series to monthly means.
//
// Usage:
//
//	monthly-average <in.csv> <out.csv>
package main

import "river-postproc/internal/cli"

func main() {
	cli.Main(cli.MonthlyAverage)
}
