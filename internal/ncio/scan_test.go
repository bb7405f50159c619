package ncio

import (
	"math"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/fhs/go-netcdf/netcdf"

	"river-postproc/internal/models"
)

// fixture describes a small river-model output. Values are laid out in the
// variable's own dimension order.
type fixture struct {
	dims    []string
	sizes   []uint64
	varName string
	varDims []int
	typ     netcdf.Type
	fill    *float64
	missing *float64
	values  []float64
}

func writeAttr(t *testing.T, v netcdf.Var, name string, typ netcdf.Type, x float64) {
	t.Helper()
	var err error
	switch typ {
	case netcdf.FLOAT:
		err = v.Attr(name).WriteFloat32s([]float32{float32(x)})
	case netcdf.DOUBLE:
		err = v.Attr(name).WriteFloat64s([]float64{x})
	case netcdf.INT:
		err = v.Attr(name).WriteInt32s([]int32{int32(x)})
	}
	if err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func writeFixture(t *testing.T, f fixture) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.nc")
	ds, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		t.Fatalf("CreateFile() error = %v", err)
	}
	defer ds.Close()

	dims := make([]netcdf.Dim, len(f.dims))
	for i, name := range f.dims {
		if dims[i], err = ds.AddDim(name, f.sizes[i]); err != nil {
			t.Fatalf("AddDim(%s) error = %v", name, err)
		}
	}
	varDims := make([]netcdf.Dim, len(f.varDims))
	for i, d := range f.varDims {
		varDims[i] = dims[d]
	}
	v, err := ds.AddVar(f.varName, f.typ, varDims)
	if err != nil {
		t.Fatalf("AddVar() error = %v", err)
	}
	if f.fill != nil {
		writeAttr(t, v, "_FillValue", f.typ, *f.fill)
	}
	if f.missing != nil {
		writeAttr(t, v, "missing_value", f.typ, *f.missing)
	}
	if err := ds.EndDef(); err != nil {
		t.Fatalf("EndDef() error = %v", err)
	}

	switch f.typ {
	case netcdf.FLOAT:
		data := make([]float32, len(f.values))
		for i, x := range f.values {
			data[i] = float32(x)
		}
		err = v.WriteFloat32s(data)
	case netcdf.DOUBLE:
		err = v.WriteFloat64s(f.values)
	case netcdf.INT:
		data := make([]int32, len(f.values))
		for i, x := range f.values {
			data[i] = int32(x)
		}
		err = v.WriteInt32s(data)
	}
	if err != nil {
		t.Fatalf("write values: %v", err)
	}
	return path
}

func num(x float64) *float64 { return &x }

func TestScan(t *testing.T) {
	nan := math.NaN()

	tests := []struct {
		name       string
		fixture    fixture
		wantLayout Layout
		wantMasked map[int]int
	}{
		{
			name: "clean time by river",
			fixture: fixture{
				dims: []string{"Time", "COMID"}, sizes: []uint64{3, 2},
				varName: "m3_riv", varDims: []int{0, 1}, typ: netcdf.FLOAT,
				values: []float64{1, 2, 3, 4, 5, 6},
			},
			wantLayout: Layout{RiverDim: "COMID", TimeDim: "Time", Variable: "m3_riv", NRivers: 2, NTimes: 3},
			wantMasked: map[int]int{},
		},
		{
			name: "nan in river by time",
			fixture: fixture{
				dims: []string{"rivid", "time"}, sizes: []uint64{2, 3},
				varName: "Qout", varDims: []int{0, 1}, typ: netcdf.DOUBLE,
				values: []float64{1, nan, 3, 4, nan, 6},
			},
			wantLayout: Layout{RiverDim: "rivid", TimeDim: "time", Variable: "Qout", NRivers: 2, NTimes: 3},
			wantMasked: map[int]int{1: 2},
		},
		{
			name: "explicit fill and missing value",
			fixture: fixture{
				dims: []string{"time", "rivid"}, sizes: []uint64{3, 2},
				varName: "Qout", varDims: []int{0, 1}, typ: netcdf.FLOAT,
				fill: num(-9999), missing: num(-1),
				values: []float64{1, 2, -1, 4, -9999, -9999},
			},
			wantLayout: Layout{RiverDim: "rivid", TimeDim: "time", Variable: "Qout", NRivers: 2, NTimes: 3},
			wantMasked: map[int]int{1: 1, 2: 2},
		},
		{
			name: "default fill without attribute",
			fixture: fixture{
				dims: []string{"time", "COMID"}, sizes: []uint64{2, 2},
				varName: "V", varDims: []int{0, 1}, typ: netcdf.FLOAT,
				values: []float64{float64(DefaultFillFloat), 2, 3, 4},
			},
			wantLayout: Layout{RiverDim: "COMID", TimeDim: "time", Variable: "V", NRivers: 2, NTimes: 2},
			wantMasked: map[int]int{0: 1},
		},
		{
			name: "default fill ignored when attribute set",
			fixture: fixture{
				dims: []string{"time", "COMID"}, sizes: []uint64{2, 2},
				varName: "V", varDims: []int{0, 1}, typ: netcdf.DOUBLE,
				fill: num(-9999),
				values: []float64{DefaultFillDouble, 2, 3, 4},
			},
			wantLayout: Layout{RiverDim: "COMID", TimeDim: "time", Variable: "V", NRivers: 2, NTimes: 2},
			wantMasked: map[int]int{},
		},
		{
			name: "int default fill",
			fixture: fixture{
				dims: []string{"COMID", "Time"}, sizes: []uint64{2, 2},
				varName: "m3_riv", varDims: []int{0, 1}, typ: netcdf.INT,
				values: []float64{1, 2, 3, float64(DefaultFillInt)},
			},
			wantLayout: Layout{RiverDim: "COMID", TimeDim: "Time", Variable: "m3_riv", NRivers: 2, NTimes: 2},
			wantMasked: map[int]int{1: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Scan(writeFixture(t, tt.fixture))
			if err != nil {
				t.Fatalf("Scan() error = %v", err)
			}
			if res.Layout != tt.wantLayout {
				t.Errorf("Layout = %+v, want %+v", res.Layout, tt.wantLayout)
			}
			if !reflect.DeepEqual(res.MaskedByTime, tt.wantMasked) {
				t.Errorf("MaskedByTime = %v, want %v", res.MaskedByTime, tt.wantMasked)
			}
			total := 0
			for _, n := range tt.wantMasked {
				total += n
			}
			if res.Masked != total {
				t.Errorf("Masked = %d, want %d", res.Masked, total)
			}
		})
	}
}

func TestScan_LayoutErrors(t *testing.T) {
	tests := []struct {
		name    string
		fixture fixture
	}{
		{
			name: "no river dimension",
			fixture: fixture{
				dims: []string{"time", "station"}, sizes: []uint64{2, 2},
				varName: "Qout", varDims: []int{0, 1}, typ: netcdf.DOUBLE,
				values: []float64{1, 2, 3, 4},
			},
		},
		{
			name: "no time dimension",
			fixture: fixture{
				dims: []string{"step", "rivid"}, sizes: []uint64{2, 2},
				varName: "Qout", varDims: []int{0, 1}, typ: netcdf.DOUBLE,
				values: []float64{1, 2, 3, 4},
			},
		},
		{
			name: "unknown variable",
			fixture: fixture{
				dims: []string{"time", "rivid"}, sizes: []uint64{2, 2},
				varName: "flow", varDims: []int{0, 1}, typ: netcdf.DOUBLE,
				values: []float64{1, 2, 3, 4},
			},
		},
		{
			name: "variable over one dimension",
			fixture: fixture{
				dims: []string{"time", "rivid"}, sizes: []uint64{2, 3},
				varName: "Qout", varDims: []int{1}, typ: netcdf.DOUBLE,
				values: []float64{1, 2, 3},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Scan(writeFixture(t, tt.fixture))
			if code := models.ExitCode(err); code != models.ExitNetCDFLayoutError {
				t.Errorf("Scan() exit code = %d (%v), want %d", code, err, models.ExitNetCDFLayoutError)
			}
		})
	}
}

func TestScan_MissingFile(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "absent.nc"))
	if models.ErrorKindOf(err) != models.KindMissingFile {
		t.Errorf("Scan() error = %v, want a missing file error", err)
	}
	if models.ExitCode(err) != models.ExitInvalid {
		t.Errorf("exit code = %d, want %d", models.ExitCode(err), models.ExitInvalid)
	}
}

func TestScanResult_MaskedTimeSteps(t *testing.T) {
	res := &ScanResult{
		Layout:       Layout{NTimes: 5},
		MaskedByTime: map[int]int{3: 1, 0: 2, 4: 7},
	}
	if got, want := res.MaskedTimeSteps(), []int{0, 3, 4}; !reflect.DeepEqual(got, want) {
		t.Errorf("MaskedTimeSteps() = %v, want %v", got, want)
	}
}
