// Command sum adds river time series that share identical timestamps.
//
// Usage:
//
//	sum <in1.csv> <in2.csv> [<in3.csv>...] <out.csv>
package main

import "river-postproc/internal/cli"

func main() {
	cli.Main(cli.Sum)
}
