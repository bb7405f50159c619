package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/fhs/go-netcdf/netcdf"
	"github.com/jonas-p/go-shp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"river-postproc/internal/models"
	"river-postproc/internal/repository"
	"river-postproc/migrations"
	"river-postproc/pkg/database"
	"river-postproc/pkg/logging"
	"river-postproc/pkg/metrics"
)

func testDeps() (*logging.StructuredLogger, *metrics.Collector) {
	logger := logging.NewStructuredLogger("services-test", "test", logging.ErrorLevel)
	logger.SetOutput(io.Discard)
	return logger, metrics.NewCollector("test")
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// writeReaches writes a point shapefile with rivid, an optional Sttn_Nm and an
// Area attribute per feature.
func writeReaches(t *testing.T, path string, ids []int, withName bool) {
	t.Helper()
	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		t.Fatalf("shp.Create() error = %v", err)
	}
	defer w.Close()

	fields := []shp.Field{shp.NumberField(models.AttrRivID, 10), shp.FloatField("Area", 12, 2)}
	if withName {
		fields = append(fields, shp.StringField(models.AttrStationName, 16))
	}
	if err := w.SetFields(fields); err != nil {
		t.Fatalf("SetFields() error = %v", err)
	}
	for i, id := range ids {
		row := int(w.Write(&shp.Point{X: float64(i), Y: 0}))
		w.WriteAttribute(row, 0, id)
		w.WriteAttribute(row, 1, float64(id))
		if withName {
			w.WriteAttribute(row, 2, "gauge")
		}
	}
}

func newSeries(columns []string, dates []string, values ...[]float64) *models.TimeSeries {
	ts := &models.TimeSeries{DateHeader: "date", Columns: columns}
	for i, d := range dates {
		parsed, _ := time.Parse("2006-01-02", d)
		ts.Dates = append(ts.Dates, parsed)
		ts.Values = append(ts.Values, values[i])
	}
	return ts
}

func sameValues(a, b [][]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if math.IsNaN(a[i][j]) != math.IsNaN(b[i][j]) {
				return false
			}
			if !math.IsNaN(a[i][j]) && a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}

func TestStatisticsService_Digest(t *testing.T) {
	ctx := context.Background()
	logger, collector := testDeps()
	dir := t.TempDir()

	stats := writeFile(t, dir, "stats.csv",
		"rivid,RMSE,Bias,STDE,Qobsbar,Nash,extra\n1,2,1,1,10,0.8,x\n2,5,5,5,10,0.1,y\n")
	gauges := filepath.Join(dir, "gauges.shp")
	writeReaches(t, gauges, []int{1, 9}, true)
	out := filepath.Join(dir, "digest.csv")

	var stdout bytes.Buffer
	svc := NewStatisticsService(logger, collector, &stdout)
	summary, err := svc.Digest(ctx, stats, gauges, out)
	if err != nil {
		t.Fatalf("Digest() error = %v", err)
	}

	want := ",nRMSE,nBias,nSTDE,Nash\n" +
		"mean,0.20,0.10,0.10,0.80\n" +
		"median,0.20,0.10,0.10,0.80\n" +
		"68%,0.20,0.10,0.10,0.80\n"
	if got := readFile(t, out); got != want {
		t.Errorf("digest = %q, want %q", got, want)
	}
	if summary.RowsIn != 2 || summary.RowsOut != 3 || len(summary.Digest) != 3 {
		t.Errorf("summary = %+v", summary)
	}
	if !strings.Contains(stdout.String(), "- Number of river reaches kept: 1") {
		t.Errorf("diagnostics = %q", stdout.String())
	}
}

func TestStatisticsService_DigestEmptySubset(t *testing.T) {
	logger, collector := testDeps()
	dir := t.TempDir()
	stats := writeFile(t, dir, "stats.csv", "rivid,RMSE,Bias,STDE,Qobsbar,Nash\n1,2,1,1,10,0.8\n")
	gauges := filepath.Join(dir, "gauges.shp")
	writeReaches(t, gauges, []int{42}, true)
	out := filepath.Join(dir, "digest.csv")

	var stdout bytes.Buffer
	summary, err := NewStatisticsService(logger, collector, &stdout).Digest(context.Background(), stats, gauges, out)
	if err != nil {
		t.Fatalf("Digest() error = %v", err)
	}
	want := ",nRMSE,nBias,nSTDE,Nash\nmean,,,,\nmedian,,,,\n68%,,,,\n"
	if got := readFile(t, out); got != want {
		t.Errorf("digest = %q, want %q", got, want)
	}
	if !strings.Contains(stdout.String(), "WARNING") {
		t.Error("an empty subset should print a warning")
	}
	if summary.Digest[0].NRMSE != nil {
		t.Error("archived digest of an empty subset should hold NULLs")
	}
}

func TestStatisticsService_DigestErrors(t *testing.T) {
	logger, collector := testDeps()
	dir := t.TempDir()
	stats := writeFile(t, dir, "stats.csv", "rivid,RMSE,Bias,STDE,Qobsbar,Nash\n1,2,1,1,10,0.8\n")
	noNash := writeFile(t, dir, "nonash.csv", "rivid,RMSE,Bias,STDE,Qobsbar\n1,2,1,1,10\n")
	gauges := filepath.Join(dir, "gauges.shp")
	writeReaches(t, gauges, []int{1}, true)
	unnamed := filepath.Join(dir, "unnamed.shp")
	writeReaches(t, unnamed, []int{1}, false)

	tests := []struct {
		name     string
		stats    string
		gauges   string
		wantKind models.ErrorKind
	}{
		{"missing table", filepath.Join(dir, "absent.csv"), gauges, models.KindMissingFile},
		{"missing shapefile", stats, filepath.Join(dir, "absent.shp"), models.KindMissingFile},
		{"missing column", noNash, gauges, models.KindMissingField},
		{"missing station name", stats, unnamed, models.KindMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStatisticsService(logger, collector, io.Discard).Digest(context.Background(), tt.stats, tt.gauges, filepath.Join(dir, "out.csv"))
			if models.ErrorKindOf(err) != tt.wantKind || models.ExitCode(err) != models.ExitInvalid {
				t.Errorf("Digest() error = %v, want kind %s", err, tt.wantKind)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	rows := []models.StatisticsRow{
		{RivID: 1, RMSE: 1, Bias: -1, STDE: 1, Qobsbar: 10, Nash: 0.9},
		{RivID: 2, RMSE: 2, Bias: 0, STDE: 2, Qobsbar: 10, Nash: 0.5},
		{RivID: 3, RMSE: 4, Bias: 2, STDE: 3, Qobsbar: 10, Nash: 0.1},
	}
	got := Summarize(rows)
	if len(got) != 3 || got[0].Label != models.LabelMean || got[1].Label != models.LabelMedian || got[2].Label != models.Label68 {
		t.Fatalf("labels = %+v", got)
	}

	const eps = 1e-12
	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"mean nRMSE", got[0].Metrics.NRMSE, 7.0 / 30},
		{"median nBias", got[1].Metrics.NBias, 0},
		{"median Nash", got[1].Metrics.Nash, 0.5},
		{"68% nRMSE", got[2].Metrics.NRMSE, 0.2 + (0.4-0.2)*0.36},
		{"32% Nash", got[2].Metrics.Nash, 0.1 + (0.5-0.1)*0.64},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > eps {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestQuantileAndMean(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		q      float64
		want   float64
	}{
		{"single", []float64{3}, 0.68, 3},
		{"interpolated", []float64{4, 1, 3, 2}, 0.68, 3.04},
		{"median even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"nan skipped", []float64{math.NaN(), 1, 3}, 0.5, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Quantile(tt.values, tt.q); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Quantile() = %v, want %v", got, tt.want)
			}
		})
	}

	if !math.IsNaN(Quantile(nil, 0.5)) || !math.IsNaN(Mean(nil)) {
		t.Error("no values should yield NaN")
	}
	if got := Mean([]float64{1, math.NaN(), 2}); got != 1.5 {
		t.Errorf("Mean() = %v, want 1.5", got)
	}
}

func TestMonthlyMean(t *testing.T) {
	nan := math.NaN()
	daily := newSeries([]string{"10", "20"},
		[]string{"2020-01-15", "2020-01-20", "2020-03-01", "2020-03-31"},
		[]float64{1, nan},
		[]float64{3, nan},
		[]float64{2, 4},
		[]float64{nan, 6},
	)
	got := MonthlyMean(daily)

	wantDates := []string{"2020-01-01", "2020-02-01", "2020-03-01"}
	if got.NumRows() != len(wantDates) {
		t.Fatalf("rows = %d, want %d", got.NumRows(), len(wantDates))
	}
	for i, d := range wantDates {
		want, _ := time.Parse("2006-01-02", d)
		if !got.Dates[i].Equal(want) {
			t.Errorf("date %d = %v, want %s", i, got.Dates[i], d)
		}
	}
	want := [][]float64{{2, nan}, {nan, nan}, {2, 5}}
	if !sameValues(got.Values, want) {
		t.Errorf("values = %v, want %v", got.Values, want)
	}

	for _, dates := range [][]string{
		{"2020-01-01", "2020-02-01", "2020-03-01"},
		{"2000-01-15", "2000-02-15", "2000-03-31"},
	} {
		monthly := newSeries([]string{"10"}, dates, []float64{1.5}, []float64{nan}, []float64{2.25})
		again := MonthlyMean(monthly)
		if again.NumRows() != monthly.NumRows() || !sameValues(again.Values, monthly.Values) {
			t.Fatalf("monthly data %v should be unchanged, got %v", dates, again.Values)
		}
		for i := range monthly.Dates {
			if !again.Dates[i].Equal(monthly.Dates[i]) {
				t.Errorf("date %d = %v, want %v", i, again.Dates[i], monthly.Dates[i])
			}
		}
	}
}

func TestConcatenateSeries(t *testing.T) {
	dates := []string{"2020-01-01", "2020-01-02"}
	a := newSeries([]string{"1", "2"}, dates, []float64{1, 2}, []float64{3, 4})
	b := newSeries([]string{"3"}, dates, []float64{5}, []float64{6})
	c := newSeries([]string{"4", "5", "6"}, dates, []float64{7, 8, 9}, []float64{10, 11, 12})

	got, err := ConcatenateSeries(a, b, c)
	if err != nil {
		t.Fatalf("ConcatenateSeries() error = %v", err)
	}
	if got.NumRows() != 2 || got.NumColumns() != 6 {
		t.Errorf("shape = %dx%d, want 2x6", got.NumRows(), got.NumColumns())
	}
	if !reflect.DeepEqual(got.Columns, []string{"1", "2", "3", "4", "5", "6"}) {
		t.Errorf("columns = %v", got.Columns)
	}
	if !reflect.DeepEqual(got.Values[1], []float64{3, 4, 6, 10, 11, 12}) {
		t.Errorf("row 1 = %v", got.Values[1])
	}

	shifted := newSeries([]string{"3"}, []string{"2020-01-01", "2020-01-03"}, []float64{5}, []float64{6})
	if _, err := ConcatenateSeries(a, shifted); models.ErrorKindOf(err) != models.KindInconsistentIndex {
		t.Errorf("shifted timestamps error = %v, want inconsistent index", err)
	}
	short := newSeries([]string{"3"}, []string{"2020-01-01"}, []float64{5})
	if _, err := ConcatenateSeries(a, short); models.ExitCode(err) != models.ExitInvalid {
		t.Errorf("shorter series error = %v, want exit 22", err)
	}
}

func TestSumSeries(t *testing.T) {
	dates := []string{"2020-01-01", "2020-01-02"}
	a := newSeries([]string{"1", "2"}, dates, []float64{0.5, 1}, []float64{2, 4})
	b := newSeries([]string{"x", "y"}, dates, []float64{0.25, 8}, []float64{1.5, math.NaN()})
	c := newSeries([]string{"p", "q"}, dates, []float64{16, 0.125}, []float64{-2, 3})

	abc, err := SumSeries(a, b, c)
	if err != nil {
		t.Fatalf("SumSeries() error = %v", err)
	}
	if !reflect.DeepEqual(abc.Columns, []string{"1", "2"}) {
		t.Errorf("columns = %v, want the first input's", abc.Columns)
	}
	want := [][]float64{{16.75, 9.125}, {1.5, math.NaN()}}
	if !sameValues(abc.Values, want) {
		t.Errorf("values = %v, want %v", abc.Values, want)
	}

	for _, perm := range [][]*models.TimeSeries{{c, a, b}, {b, c, a}, {c, b, a}} {
		got, err := SumSeries(perm...)
		if err != nil {
			t.Fatalf("SumSeries() error = %v", err)
		}
		if !sameValues(got.Values, abc.Values) {
			t.Errorf("permuted sum = %v, want %v", got.Values, abc.Values)
		}
	}

	narrow := newSeries([]string{"1"}, dates, []float64{1}, []float64{2})
	if _, err := SumSeries(a, narrow); models.ErrorKindOf(err) != models.KindFormatMismatch {
		t.Errorf("column mismatch error = %v, want format mismatch", err)
	}
}

func TestTimeSeriesService_Files(t *testing.T) {
	ctx := context.Background()
	logger, collector := testDeps()
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "Datetime,11,12\n2020-01-01 00:00:00,1,2\n2020-01-01 06:00:00,3,\n")
	b := writeFile(t, dir, "b.csv", "Datetime,13\n2020-01-01T00:00:00Z,5\n2020-01-01T06:00:00Z,6\n")

	svc := NewTimeSeriesService(logger, collector, io.Discard)
	out := filepath.Join(dir, "joined.csv")
	summary, err := svc.Concatenate(ctx, []string{a, b}, out)
	if err != nil {
		t.Fatalf("Concatenate() error = %v", err)
	}
	want := "Datetime,11,12,13\n2020-01-01 00:00:00,1.0,2.0,5.0\n2020-01-01 06:00:00,3.0,,6.0\n"
	if got := readFile(t, out); got != want {
		t.Errorf("joined = %q, want %q", got, want)
	}
	if summary.RowsIn != 4 || summary.RowsOut != 2 {
		t.Errorf("summary = %+v", summary)
	}
	if got := testutil.ToFloat64(collector.ToolRowsWritten.WithLabelValues(ToolConcatenate)); got != 2 {
		t.Errorf("rows written metric = %v, want 2", got)
	}

	monthly := filepath.Join(dir, "monthly.csv")
	if _, err := svc.MonthlyAverage(ctx, a, monthly); err != nil {
		t.Fatalf("MonthlyAverage() error = %v", err)
	}
	if got, want := readFile(t, monthly), "Datetime,11,12\n2020-01-01,2.0,2.0\n"; got != want {
		t.Errorf("monthly = %q, want %q", got, want)
	}

	c := writeFile(t, dir, "c.csv", "Datetime,13\n2020-01-01,5\n2020-01-02,6\n")
	_, err = svc.Sum(ctx, []string{b, c}, filepath.Join(dir, "sum.csv"))
	if models.ErrorKindOf(err) != models.KindInconsistentIndex {
		t.Errorf("Sum() error = %v, want inconsistent index", err)
	}
}

func TestCollapseSchedule(t *testing.T) {
	records := []models.SamplingRecord{
		{RivID: 10, Count: 2, Times: []int64{3, 7}},
		{RivID: 11, Count: 0, Times: []int64{}},
		{RivID: 12, Count: 1, Times: []int64{9}},
	}
	got := CollapseSchedule(records, 4)
	want := []models.SamplingRecord{
		{RivID: 10, Count: 1, Times: []int64{4}},
		{RivID: 12, Count: 1, Times: []int64{4}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CollapseSchedule() = %+v, want %+v", got, want)
	}
}

func TestSamplingService_Collapse(t *testing.T) {
	logger, collector := testDeps()
	dir := t.TempDir()
	in := writeFile(t, dir, "schedule.csv", "10,2,3,7\n11,0,,\n12,1,9,\n")
	out := filepath.Join(dir, "out.csv")

	summary, err := NewSamplingService(logger, collector, io.Discard).Collapse(context.Background(), in, 5, out)
	if err != nil {
		t.Fatalf("Collapse() error = %v", err)
	}
	if got, want := readFile(t, out), "10,1,5\n12,1,5\n"; got != want {
		t.Errorf("schedule = %q, want %q", got, want)
	}
	if summary.RowsIn != 3 || summary.RowsOut != 2 {
		t.Errorf("summary = %+v", summary)
	}

	bad := writeFile(t, dir, "bad.csv", "10,3,3,7\n")
	if _, err := NewSamplingService(logger, collector, io.Discard).Collapse(context.Background(), bad, 5, out); models.ExitCode(err) != models.ExitInvalid || err == nil {
		t.Errorf("inconsistent count error = %v, want exit 22", err)
	}
}

func TestShapefileService_Trim(t *testing.T) {
	logger, collector := testDeps()
	dir := t.TempDir()
	in := filepath.Join(dir, "rivers.shp")
	writeReaches(t, in, []int{1, 2, 3}, false)
	out := filepath.Join(dir, "trimmed.shp")

	summary, err := NewShapefileService(logger, collector, io.Discard).Trim(context.Background(), in, "Area", 2, out)
	if err != nil {
		t.Fatalf("Trim() error = %v", err)
	}
	if summary.RowsIn != 3 || summary.RowsOut != 2 {
		t.Errorf("summary = %+v", summary)
	}
	if got := testutil.ToFloat64(collector.ShapefileFeatures.WithLabelValues(ToolTrimShapefile, "dropped")); got != 1 {
		t.Errorf("dropped features metric = %v, want 1", got)
	}

	_, err = NewShapefileService(logger, collector, io.Discard).Trim(context.Background(), in, "Length", 2, out)
	if models.ErrorKindOf(err) != models.KindMissingField {
		t.Errorf("missing field error = %v", err)
	}
}

func TestShapefileService_CalibrationSubset(t *testing.T) {
	logger, collector := testDeps()
	dir := t.TempDir()
	gauges := writeFile(t, dir, "gauges.csv", "COMID\n30\n10\n20\n\n40\n")
	calibration := filepath.Join(dir, "calibration.shp")
	writeReaches(t, calibration, []int{20, 30, 50}, false)
	out := filepath.Join(dir, "subset.csv")

	svc := NewShapefileService(logger, collector, io.Discard)
	summary, err := svc.CalibrationSubset(context.Background(), gauges, calibration, out)
	if err != nil {
		t.Fatalf("CalibrationSubset() error = %v", err)
	}
	if got, want := readFile(t, out), "30\n20\n"; got != want {
		t.Errorf("subset = %q, want %q", got, want)
	}
	if summary.RowsIn != 4 || summary.RowsOut != 2 {
		t.Errorf("summary = %+v", summary)
	}

	tests := []struct {
		name        string
		gauges      string
		calibration string
		wantCode    int
	}{
		{"missing gauge list", filepath.Join(dir, "absent.csv"), calibration, models.ExitInvalid},
		{"missing calibration shapefile", gauges, filepath.Join(dir, "absent.shp"), models.ExitMissingOptional},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CalibrationSubset(context.Background(), tt.gauges, tt.calibration, out)
			if code := models.ExitCode(err); code != tt.wantCode {
				t.Errorf("exit code = %d (%v), want %d", code, err, tt.wantCode)
			}
		})
	}
}

func TestIntersectIDs(t *testing.T) {
	set := map[int64]struct{}{2: {}, 4: {}}
	if got := IntersectIDs([]int64{4, 1, 2, 4}, set); !reflect.DeepEqual(got, []int64{4, 2, 4}) {
		t.Errorf("IntersectIDs() = %v", got)
	}
}

func TestCatchmentService_Delineate(t *testing.T) {
	logger, collector := testDeps()
	dir := t.TempDir()
	header := "ncols 4\nnrows 1\nxllcorner 100\nyllcorner 200\ncellsize 10\nNODATA_value -9999\n"
	fdir := writeFile(t, dir, "fdir.asc", header+"1 0 0 16\n")
	writeFile(t, dir, "fdir.prj", "PROJCS[\"test\"]")
	link := writeFile(t, dir, "link.asc", header+"0 5 3 0\n")
	out := filepath.Join(dir, "catchments.shp")

	var stdout bytes.Buffer
	summary, err := NewCatchmentService(logger, collector, &stdout).Delineate(context.Background(), fdir, link, out)
	if err != nil {
		t.Fatalf("Delineate() error = %v", err)
	}
	if summary.RowsOut != 2 {
		t.Errorf("summary = %+v", summary)
	}
	if _, err := os.Stat(filepath.Join(dir, "catchments.prj")); err != nil {
		t.Errorf("projection not copied: %v", err)
	}

	r, err := shp.Open(out)
	if err != nil {
		t.Fatalf("shp.Open() error = %v", err)
	}
	defer r.Close()
	var ids []string
	var boxes []shp.Box
	for r.Next() {
		n, shape := r.Shape()
		ids = append(ids, strings.Trim(r.ReadAttribute(n, 0), " \x00"))
		boxes = append(boxes, shape.BBox())
	}
	if !reflect.DeepEqual(ids, []string{"3", "5"}) {
		t.Errorf("rivids = %v, want [3 5]", ids)
	}
	wantBoxes := []shp.Box{
		{MinX: 120, MinY: 200, MaxX: 140, MaxY: 210},
		{MinX: 100, MinY: 200, MaxX: 120, MaxY: 210},
	}
	if !reflect.DeepEqual(boxes, wantBoxes) {
		t.Errorf("boxes = %v, want %v", boxes, wantBoxes)
	}

	wide := writeFile(t, dir, "wide.asc", "ncols 5\nnrows 1\nxllcorner 100\nyllcorner 200\ncellsize 10\n0 5 3 0 0\n")
	_, err = NewCatchmentService(logger, collector, io.Discard).Delineate(context.Background(), fdir, wide, out)
	if models.ErrorKindOf(err) != models.KindFormatMismatch {
		t.Errorf("frame mismatch error = %v", err)
	}
}

func writeNetCDF(t *testing.T, values []float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Qout.nc")
	ds, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		t.Fatalf("CreateFile() error = %v", err)
	}
	defer ds.Close()
	timeDim, err := ds.AddDim("time", uint64(len(values)/2))
	if err != nil {
		t.Fatalf("AddDim() error = %v", err)
	}
	riverDim, err := ds.AddDim("rivid", 2)
	if err != nil {
		t.Fatalf("AddDim() error = %v", err)
	}
	v, err := ds.AddVar("Qout", netcdf.DOUBLE, []netcdf.Dim{timeDim, riverDim})
	if err != nil {
		t.Fatalf("AddVar() error = %v", err)
	}
	if err := v.Attr("_FillValue").WriteFloat64s([]float64{-9999}); err != nil {
		t.Fatalf("write _FillValue: %v", err)
	}
	if err := ds.EndDef(); err != nil {
		t.Fatalf("EndDef() error = %v", err)
	}
	if err := v.WriteFloat64s(values); err != nil {
		t.Fatalf("WriteFloat64s() error = %v", err)
	}
	return path
}

func TestNetCDFService_Check(t *testing.T) {
	logger, collector := testDeps()

	var stdout bytes.Buffer
	svc := NewNetCDFService(logger, collector, &stdout)
	summary, err := svc.Check(context.Background(), writeNetCDF(t, []float64{1, 2, 3, 4}))
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if summary.RowsIn != 2 || !strings.Contains(stdout.String(), "No masked values") {
		t.Errorf("summary = %+v, output %q", summary, stdout.String())
	}

	stdout.Reset()
	_, err = svc.Check(context.Background(), writeNetCDF(t, []float64{1, 2, -9999, math.NaN(), 5, -9999}))
	if models.ErrorKindOf(err) != models.KindUnrecoverableData || models.ExitCode(err) != models.ExitInvalid {
		t.Errorf("Check() error = %v, want unrecoverable data", err)
	}
	if !strings.Contains(stdout.String(), "- Number of masked values: 3 in 2 time steps") {
		t.Errorf("output = %q", stdout.String())
	}
	if got := testutil.ToFloat64(collector.NetCDFMaskedValues); got != 3 {
		t.Errorf("masked values metric = %v, want 3", got)
	}
}

func TestArchiveService(t *testing.T) {
	ctx := context.Background()
	logger, collector := testDeps()
	db, err := database.NewArchiveDB(&database.Config{
		Driver:       database.DriverSQLite,
		Path:         filepath.Join(t.TempDir(), "archive.db"),
		MaxOpenConns: 1,
	}, logger, collector)
	if err != nil {
		t.Fatalf("NewArchiveDB() error = %v", err)
	}
	defer db.Close()
	if _, err := migrations.Run(ctx, db, migrations.Up); err != nil {
		t.Fatalf("migrations.Run() error = %v", err)
	}
	svc := NewArchiveService(repository.NewArchiveRepository(db, logger, collector), logger, collector)

	run := &models.RunRecord{ID: "r1", Tool: ToolDigestStatistics, Status: models.RunStatusSuccess, StartedAt: time.Now().UTC()}
	digest := Summarize([]models.StatisticsRow{{RivID: 1, RMSE: 2, Bias: 1, STDE: 1, Qobsbar: 10, Nash: 0.8}})
	rows := make([]models.DigestRow, 0, len(digest))
	for _, d := range digest {
		rows = append(rows, models.NewDigestRow(d.Label, d.Metrics))
	}
	if err := svc.Record(ctx, run, rows); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, err := svc.GetDigest(ctx, "r1")
	if err != nil {
		t.Fatalf("GetDigest() error = %v", err)
	}
	if len(got) != 3 || got[2].Label != models.Label68 || *got[0].NRMSE != 0.2 {
		t.Errorf("digest = %+v", got)
	}

	_, err = svc.GetDigest(ctx, "unknown")
	var notFound *repository.NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("GetDigest(unknown) error = %v, want NotFoundError", err)
	}

	if err := svc.Record(ctx, run, nil); err == nil {
		t.Error("recording the same run twice should fail")
	}
	if got := testutil.ToFloat64(collector.ArchiveWriteFailures); got != 1 {
		t.Errorf("archive write failures = %v, want 1", got)
	}
}
