// internal/api/server_test.go
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tamzrod/gsmlink/internal/command"
	"github.com/tamzrod/gsmlink/internal/device"
	"github.com/tamzrod/gsmlink/internal/link"
)

type fakeController struct {
	state link.State
	err   error
	got   []command.Directive
}

func (f *fakeController) State() link.State { return f.state }

func (f *fakeController) Command(d command.Directive) error {
	f.got = append(f.got, d)
	return f.err
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func TestHealth(t *testing.T) {
	s := New(":0", &fakeController{}, nil, nil)

	rr := do(t, s.Handler(), http.MethodGet, "/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("/health status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q", ct)
	}
}

func TestStatusReturnsState(t *testing.T) {
	ctrl := &fakeController{state: link.State{
		DeviceOpen: true,
		LinkUp:     true,
		LastSignal: &device.Signal{Quality: 14, DBM: -85, BER: 99},
	}}
	s := New(":0", ctrl, nil, nil)

	rr := do(t, s.Handler(), http.MethodGet, "/status")
	if rr.Code != http.StatusOK {
		t.Fatalf("/status status = %d, want 200", rr.Code)
	}

	var got map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["deviceOpen"] != true || got["linkUp"] != true || got["routeAdded"] != false {
		t.Fatalf("flags: %v", got)
	}
	sig := got["lastSignal"].(map[string]any)
	if sig["signalQuality"].(float64) != 14 {
		t.Fatalf("lastSignal: %v", sig)
	}
}

func TestDirectiveEndpoints(t *testing.T) {
	ctrl := &fakeController{}
	s := New(":0", ctrl, nil, nil)

	if rr := do(t, s.Handler(), http.MethodPost, "/link/start"); rr.Code != http.StatusAccepted {
		t.Fatalf("start status = %d, want 202", rr.Code)
	}
	if rr := do(t, s.Handler(), http.MethodPost, "/link/stop"); rr.Code != http.StatusAccepted {
		t.Fatalf("stop status = %d, want 202", rr.Code)
	}
	if rr := do(t, s.Handler(), http.MethodPost, "/link/reboot"); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown directive status = %d, want 404", rr.Code)
	}
	if rr := do(t, s.Handler(), http.MethodGet, "/link/start"); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET start status = %d, want 405", rr.Code)
	}

	if len(ctrl.got) != 2 || ctrl.got[0] != command.Start || ctrl.got[1] != command.Stop {
		t.Fatalf("directives: %v", ctrl.got)
	}
}

func TestDirectiveAfterStop(t *testing.T) {
	s := New(":0", &fakeController{err: link.ErrStopped}, nil, nil)

	if rr := do(t, s.Handler(), http.MethodPost, "/link/start"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}

func TestMetricsMountedWhenGiven(t *testing.T) {
	without := New(":0", &fakeController{}, nil, nil)
	if rr := do(t, without.Handler(), http.MethodGet, "/metrics"); rr.Code != http.StatusNotFound {
		t.Fatalf("/metrics without handler = %d, want 404", rr.Code)
	}

	m := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	with := New(":0", &fakeController{}, m, nil)
	if rr := do(t, with.Handler(), http.MethodGet, "/metrics"); rr.Code != http.StatusTeapot {
		t.Fatalf("/metrics with handler = %d, want 418", rr.Code)
	}
}
