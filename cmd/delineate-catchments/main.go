// Command delineate-catchments builds one catchment polygon per reach from D8 rasters.
//
// Usage:
//
//	delineate-catchments <fdir.asc> <link.asc> <out.shp>
package main

import "river-postproc/internal/cli"

func main() {
	cli.Main(cli.DelineateCatchments)
}
