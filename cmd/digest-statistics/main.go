// Command digest-statistics summarizes model statistics over the gauged reaches.
//
// Usage:
//
//	digest-statistics <stats.csv> <gauges.shp> <out.csv>
package main

import "river-postproc/internal/cli"

func main() {
	cli.Main(cli.DigestStatistics)
}
