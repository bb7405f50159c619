// Command check-netcdf fails when a river model netCDF output holds masked values.
//
// Usage:
//
//	check-netcdf <file.nc>
package main

import "river-postproc/internal/cli"

func main() {
	cli.Main(cli.CheckNetCDF)
}
