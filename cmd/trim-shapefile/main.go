// Command trim-shapefile keeps the shapefile features whose attribute reaches a threshold.
//
// Usage:
//
//	trim-shapefile <in.shp> <field> <threshold> <out.shp>
package main

import "river-postproc/internal/cli"

func main() {
	cli.Main(cli.TrimShapefile)
}
