package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewCollector_Independent(t *testing.T) {
	// Two collectors in one process must not collide on registration.
	a := NewCollector("river_postproc")
	b := NewCollector("river_postproc")

	a.RecordRun("sum", "success")
	a.RecordRun("sum", "success")
	b.RecordRun("sum", "failure")

	if got := testutil.ToFloat64(a.ToolRunsTotal.WithLabelValues("sum", "success")); got != 2 {
		t.Errorf("collector a success runs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(b.ToolRunsTotal.WithLabelValues("sum", "success")); got != 0 {
		t.Errorf("collector b success runs = %v, want 0", got)
	}
}

func TestCollector_AddRowsAndFeatures(t *testing.T) {
	c := NewCollector("test")

	c.AddRows("concatenate", 10, 10)
	c.AddRows("concatenate", 5, 0)
	c.RecordFeatures("trim-shapefile", "kept", 3)
	c.RecordFeatures("trim-shapefile", "dropped", 0)

	if got := testutil.ToFloat64(c.ToolRowsRead.WithLabelValues("concatenate")); got != 15 {
		t.Errorf("rows read = %v, want 15", got)
	}
	if got := testutil.ToFloat64(c.ToolRowsWritten.WithLabelValues("concatenate")); got != 10 {
		t.Errorf("rows written = %v, want 10", got)
	}
	if got := testutil.ToFloat64(c.ShapefileFeatures.WithLabelValues("trim-shapefile", "kept")); got != 3 {
		t.Errorf("kept features = %v, want 3", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("test")
	c.NetCDFMaskedValues.Add(4)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "test_netcdf_masked_values_total 4") {
		t.Errorf("metrics output missing masked value counter:\n%s", body)
	}
}
