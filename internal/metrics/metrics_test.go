// internal/metrics/metrics_test.go
package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/tamzrod/gsmlink/internal/command"
	"github.com/tamzrod/gsmlink/internal/device"
	"github.com/tamzrod/gsmlink/internal/link"
)

func newCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, reg
}

func TestObserveStateSetsFlagGauges(t *testing.T) {
	c, _ := newCollector(t)

	if got := testutil.ToFloat64(c.SignalQuality); got != 99 {
		t.Fatalf("initial signal quality = %v, want 99", got)
	}

	c.ObserveState(link.State{
		DeviceOpen: true,
		LinkUp:     true,
		LastSignal: &device.Signal{Quality: 17},
	})

	want := map[string]float64{
		"device_open":       1,
		"modem_initialized": 0,
		"link_up":           1,
		"route_added":       0,
		"uplink_synced":     0,
	}
	for flag, v := range want {
		if got := testutil.ToFloat64(c.State.WithLabelValues(flag)); got != v {
			t.Fatalf("gsmlink_state{flag=%q} = %v, want %v", flag, got, v)
		}
	}
	if got := testutil.ToFloat64(c.SignalQuality); got != 17 {
		t.Fatalf("signal quality = %v, want 17", got)
	}
}

func TestRecordCallLabelsResult(t *testing.T) {
	c, reg := newCollector(t)

	c.RecordCall(link.OpDial, 2*time.Second, nil)
	c.RecordCall(link.OpDial, time.Second, errors.New("pppd exited 1"))
	c.RecordCall(link.OpUpload, 300*time.Millisecond, nil)

	if got := testutil.ToFloat64(c.Calls.WithLabelValues("dial", "ok")); got != 1 {
		t.Fatalf("dial ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Calls.WithLabelValues("dial", "error")); got != 1 {
		t.Fatalf("dial error = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "gsmlink_capability_duration_seconds", map[string]string{"op": "dial"}); count != 2 {
		t.Fatalf("dial duration sample_count = %d, want 2", count)
	}
}

func TestRecordTickAndDirective(t *testing.T) {
	c, _ := newCollector(t)

	c.RecordTick(link.TriggerMinute)
	c.RecordTick(link.TriggerMinute)
	c.RecordTick(link.TriggerHangup)
	c.RecordDirective(command.Start)

	if got := testutil.ToFloat64(c.Ticks.WithLabelValues("minute")); got != 2 {
		t.Fatalf("minute ticks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.Ticks.WithLabelValues("hangup")); got != 1 {
		t.Fatalf("hangup ticks = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Directives.WithLabelValues("start")); got != 1 {
		t.Fatalf("start directives = %v, want 1", got)
	}
}

func TestNewReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := New(reg)
	if err != nil {
		t.Fatalf("first New: %v", err)
	}
	b, err := New(reg)
	if err != nil {
		t.Fatalf("second New: %v", err)
	}
	a.RecordTick(link.TriggerUpload)
	if got := testutil.ToFloat64(b.Ticks.WithLabelValues("upload")); got != 1 {
		t.Fatalf("shared counter = %v, want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	c, _ := newCollector(t)
	c.RecordCall(link.OpOpen, time.Millisecond, nil)
	c.RecordTick(link.TriggerHourly)
	c.RecordDirective(command.Stop)

	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"gsmlink_state",
		"gsmlink_signal_quality",
		"gsmlink_capability_calls_total",
		"gsmlink_capability_duration_seconds",
		"gsmlink_ticks_total",
		"gsmlink_directives_total",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	mfs, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
