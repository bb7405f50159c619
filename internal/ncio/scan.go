// Package ncio inspects river-model netCDF outputs.
package ncio

import (
	"fmt"
	"math"

	"github.com/fhs/go-netcdf/netcdf"
	"github.com/pkg/errors"

	"river-postproc/internal/csvio"
	"river-postproc/internal/models"
)

// Candidate names, tried in order
var (
	RiverDimNames = []string{"COMID", "rivid"}
	TimeDimNames  = []string{"Time", "time"}
	VarNames      = []string{"m3_riv", "Qout", "V"}
)

// Default fill values of the netCDF C library
const (
	DefaultFillFloat  = float32(9.9692099683868690e+36)
	DefaultFillDouble = 9.9692099683868690e+36
	DefaultFillInt    = int32(-2147483647)
)

// Layout names what was found in a file
type Layout struct {
	RiverDim string
	TimeDim  string
	Variable string
	NRivers  int
	NTimes   int
}

// ScanResult counts masked values per time step
type ScanResult struct {
	Layout
	Masked       int
	MaskedByTime map[int]int
}

// MaskedTimeSteps returns the time steps holding masked values, ascending
func (r *ScanResult) MaskedTimeSteps() []int {
	steps := make([]int, 0, len(r.MaskedByTime))
	for t := 0; t < r.NTimes; t++ {
		if r.MaskedByTime[t] > 0 {
			steps = append(steps, t)
		}
	}
	return steps
}

// Scan opens path and counts values that are NaN, equal to _FillValue or
// missing_value, or equal to the type's default fill when no _FillValue is
// set.
func Scan(path string) (*ScanResult, error) {
	if err := csvio.RequireFile(path); err != nil {
		return nil, err
	}
	ds, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, models.NewInvalidInputError(fmt.Sprintf("Unable to read %s", path), err)
	}
	defer ds.Close()

	res := &ScanResult{MaskedByTime: make(map[int]int)}
	riverDim, riverName, ok := findDim(ds, RiverDimNames)
	if !ok {
		return nil, models.NewNetCDFLayoutError(path, "no river dimension named COMID or rivid")
	}
	timeDim, timeName, ok := findDim(ds, TimeDimNames)
	if !ok {
		return nil, models.NewNetCDFLayoutError(path, "no time dimension named Time or time")
	}
	res.RiverDim, res.TimeDim = riverName, timeName

	nRivers, err := riverDim.Len()
	if err != nil {
		return nil, errors.Wrap(err, riverName)
	}
	nTimes, err := timeDim.Len()
	if err != nil {
		return nil, errors.Wrap(err, timeName)
	}
	res.NRivers, res.NTimes = int(nRivers), int(nTimes)

	v, varName, ok := findVar(ds, VarNames)
	if !ok {
		return nil, models.NewNetCDFLayoutError(path, "no variable named m3_riv, Qout or V")
	}
	res.Variable = varName

	timeAxis, err := timeAxisOf(v, riverName, timeName)
	if err != nil {
		return nil, models.NewNetCDFLayoutError(path, fmt.Sprintf("variable %s %v", varName, err))
	}

	values, isMasked, err := readMasked(v)
	if err != nil {
		return nil, models.NewInvalidInputError(fmt.Sprintf("Unable to read %s from %s", varName, path), err)
	}

	for i := range values {
		if !isMasked(i) {
			continue
		}
		t := i / res.NRivers
		if timeAxis == 1 {
			t = i % res.NTimes
		}
		res.Masked++
		res.MaskedByTime[t]++
	}
	return res, nil
}

func findDim(ds netcdf.Dataset, names []string) (netcdf.Dim, string, bool) {
	for _, name := range names {
		if d, err := ds.Dim(name); err == nil {
			return d, name, true
		}
	}
	return netcdf.Dim{}, "", false
}

func findVar(ds netcdf.Dataset, names []string) (netcdf.Var, string, bool) {
	for _, name := range names {
		if v, err := ds.Var(name); err == nil {
			return v, name, true
		}
	}
	return netcdf.Var{}, "", false
}

// timeAxisOf returns the position of the time dimension in a two-dimensional
// river-by-time variable.
func timeAxisOf(v netcdf.Var, riverName, timeName string) (int, error) {
	dims, err := v.Dims()
	if err != nil {
		return 0, err
	}
	names := make([]string, len(dims))
	for i, d := range dims {
		if names[i], err = d.Name(); err != nil {
			return 0, err
		}
	}
	switch {
	case len(names) == 2 && names[0] == timeName && names[1] == riverName:
		return 0, nil
	case len(names) == 2 && names[0] == riverName && names[1] == timeName:
		return 1, nil
	}
	return 0, fmt.Errorf("is dimensioned %v, expected %s and %s", names, timeName, riverName)
}

// readMasked loads the variable as float64 and returns a predicate telling
// whether the value at an index is masked. Comparisons happen in the
// variable's own type.
func readMasked(v netcdf.Var) ([]float64, func(int) bool, error) {
	n, err := v.Len()
	if err != nil {
		return nil, nil, err
	}
	t, err := v.Type()
	if err != nil {
		return nil, nil, err
	}

	switch t {
	case netcdf.FLOAT:
		data := make([]float32, n)
		if err := v.ReadFloat32s(data); err != nil {
			return nil, nil, err
		}
		fills, err := fillValues(v, float64(DefaultFillFloat))
		if err != nil {
			return nil, nil, err
		}
		values := make([]float64, n)
		for i, x := range data {
			values[i] = float64(x)
		}
		return values, func(i int) bool { return math.IsNaN(values[i]) || fills[values[i]] }, nil

	case netcdf.DOUBLE:
		values := make([]float64, n)
		if err := v.ReadFloat64s(values); err != nil {
			return nil, nil, err
		}
		fills, err := fillValues(v, DefaultFillDouble)
		if err != nil {
			return nil, nil, err
		}
		return values, func(i int) bool { return math.IsNaN(values[i]) || fills[values[i]] }, nil

	case netcdf.INT:
		data := make([]int32, n)
		if err := v.ReadInt32s(data); err != nil {
			return nil, nil, err
		}
		fills, err := fillValues(v, float64(DefaultFillInt))
		if err != nil {
			return nil, nil, err
		}
		values := make([]float64, n)
		for i, x := range data {
			values[i] = float64(x)
		}
		return values, func(i int) bool { return fills[values[i]] }, nil
	}
	return nil, nil, fmt.Errorf("unsupported variable type %v", t)
}

// fillValues collects _FillValue and missing_value, falling back to the
// default fill when _FillValue is absent.
func fillValues(v netcdf.Var, defaultFill float64) (map[float64]bool, error) {
	fills := make(map[float64]bool)
	hasFill := false
	for _, name := range []string{"_FillValue", "missing_value"} {
		vals, ok, err := readAttr(v.Attr(name))
		if err != nil {
			return nil, errors.Wrap(err, name)
		}
		if !ok {
			continue
		}
		if name == "_FillValue" {
			hasFill = true
		}
		for _, x := range vals {
			fills[x] = true
		}
	}
	if !hasFill {
		fills[defaultFill] = true
	}
	return fills, nil
}

func readAttr(a netcdf.Attr) ([]float64, bool, error) {
	n, err := a.Len()
	if err != nil || n == 0 {
		return nil, false, nil
	}
	t, err := a.Type()
	if err != nil {
		return nil, false, err
	}

	out := make([]float64, n)
	switch t {
	case netcdf.FLOAT:
		buf := make([]float32, n)
		if err := a.ReadFloat32s(buf); err != nil {
			return nil, false, err
		}
		for i, x := range buf {
			out[i] = float64(x)
		}
	case netcdf.DOUBLE:
		if err := a.ReadFloat64s(out); err != nil {
			return nil, false, err
		}
	case netcdf.INT:
		buf := make([]int32, n)
		if err := a.ReadInt32s(buf); err != nil {
			return nil, false, err
		}
		for i, x := range buf {
			out[i] = float64(x)
		}
	default:
		return nil, false, fmt.Errorf("unsupported attribute type %v", t)
	}
	return out, true, nil
}
