package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandler_ExposesCounters(t *testing.T) {
	m := New()
	m.ObserveTick(1500 * time.Microsecond)
	m.RecordsSaved.Add(3)
	m.SetRunning(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	out := string(body)
	for _, want := range []string{
		"pipeline_ticks_total 1",
		"pipeline_records_saved_total 3",
		"pipeline_tick_latency_us 1500",
		"pipeline_running 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in metrics output", want)
		}
	}
}

func TestSetRunning(t *testing.T) {
	m := New()
	m.SetRunning(true)
	m.SetRunning(false)
	if m.Running.Load() != 0 {
		t.Error("Expected running gauge to be 0")
	}
}
