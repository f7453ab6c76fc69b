package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordMutation(t *testing.T) {
	m := New()
	m.RecordMutation("addRoom", 3, nil)
	m.RecordMutation("addRoom", 0, errors.New("boom"))
	m.RecordMutation("addRoom", 4, nil)

	if got := testutil.ToFloat64(m.mutations.WithLabelValues("addRoom", "ok")); got != 2 {
		t.Errorf("ok mutations = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.mutations.WithLabelValues("addRoom", "error")); got != 1 {
		t.Errorf("failed mutations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.revision); got != 4 {
		t.Errorf("revision gauge = %v, want 4", got)
	}
}

func TestRecordMirrorAndCache(t *testing.T) {
	m := New()
	m.RecordMirror(7, nil)
	m.RecordMirror(8, errors.New("quota"))
	m.RecordCacheLookup("balances", true)
	m.RecordCacheLookup("balances", false)
	m.RecordCacheLookup("balances", false)

	if got := testutil.ToFloat64(m.syncedRev); got != 7 {
		t.Errorf("synced gauge = %v, want 7", got)
	}
	if got := testutil.ToFloat64(m.cacheLookups.WithLabelValues("balances", "miss")); got != 2 {
		t.Errorf("cache misses = %v, want 2", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveHTTP(http.MethodGet, "/api/dashboard", http.StatusOK, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{`hisab_http_requests_total{code="200",method="GET",route="/api/dashboard"} 1`, "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
