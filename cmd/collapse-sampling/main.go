// Command collapse-sampling moves every sampled river of a schedule to one time index.
//
// Usage:
//
//	collapse-sampling <schedule.csv> <time> <out.csv>
package main

import "river-postproc/internal/cli"

func main() {
	cli.Main(cli.CollapseSampling)
}
