// internal/device/device_test.go
package device

import (
	"context"
	"errors"
	"testing"
	"time"
)

// PDUs below are SMS-DELIVER from 1234567890, no SMSC, GSM 7-bit.
const (
	pduPon  = "00040A81214365870900003210412143650003F0B71B"
	pduPoff = "00040A81214365870900003210412143650004F0B7D90C"
)

func TestParseCSQ(t *testing.T) {
	s, err := parseCSQ([]string{"+CSQ: 20,99"})
	if err != nil {
		t.Fatalf("parseCSQ err=%v", err)
	}
	if s.Quality != 20 || s.BER != 99 {
		t.Fatalf("unexpected sample: %+v", s)
	}
	if s.DBM != -73 {
		t.Fatalf("dBm: got=%d want=-73", s.DBM)
	}
}

func TestParseCSQ_Unknown(t *testing.T) {
	s, err := parseCSQ([]string{"", "+CSQ: 99,99"})
	if err != nil {
		t.Fatalf("parseCSQ err=%v", err)
	}
	if s.Known() {
		t.Fatalf("rssi 99 must be unknown")
	}
	if s.DBM != 0 {
		t.Fatalf("unknown signal should carry no dBm, got %d", s.DBM)
	}
}

func TestParseCSQ_Errors(t *testing.T) {
	for _, info := range [][]string{
		nil,
		{"OK"},
		{"+CSQ: x,y"},
		{"+CSQ: 45,0"},
	} {
		if _, err := parseCSQ(info); err == nil {
			t.Fatalf("parseCSQ(%q): expected error", info)
		}
	}
}

func TestParseListing(t *testing.T) {
	info := []string{
		"+CMGL: 1,1,,21",
		pduPoff,
		"+CMGL: 2,1,,21",
		pduPon,
	}

	msgs, errs := parseListing(info)
	if len(errs) != 0 {
		t.Fatalf("unexpected decode errors: %v", errs)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Index != 1 || msgs[0].Body != "poff" {
		t.Fatalf("first message: %+v", msgs[0])
	}
	if msgs[1].Index != 2 || msgs[1].Body != "pon" {
		t.Fatalf("second message: %+v", msgs[1])
	}
	if msgs[0].Number != "1234567890" {
		t.Fatalf("number: got=%q", msgs[0].Number)
	}
}

func TestParseListing_SkipsBadEntries(t *testing.T) {
	info := []string{
		"+CMGL: 3,1,,21",
		"ZZZZ",
		"+CMGL: 4,1,,21",
		pduPon,
		"+CMGL: 5,1,,21",
	}

	msgs, errs := parseListing(info)
	if len(msgs) != 1 || msgs[0].Index != 4 {
		t.Fatalf("expected only index 4, got %+v", msgs)
	}
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors (bad pdu, missing pdu), got %v", errs)
	}
}

func TestParseListing_Empty(t *testing.T) {
	msgs, errs := parseListing(nil)
	if len(msgs) != 0 || len(errs) != 0 {
		t.Fatalf("empty listing should yield nothing: %v %v", msgs, errs)
	}
}

func TestOperationsBeforeOpen(t *testing.T) {
	g := New(Config{Path: "/dev/null-modem"}, nil)
	ctx := context.Background()

	if err := g.InitModem(ctx); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("InitModem err=%v, want ErrNotOpen", err)
	}
	if _, err := g.SampleSignal(ctx); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("SampleSignal err=%v, want ErrNotOpen", err)
	}
	if _, err := g.ReadInbox(ctx); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("ReadInbox err=%v, want ErrNotOpen", err)
	}
	if err := g.ClearInbox(ctx); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("ClearInbox err=%v, want ErrNotOpen", err)
	}
	if err := g.Close(); err != nil {
		t.Fatalf("Close on closed gateway: %v", err)
	}
}

func TestTimeoutClampsToDeadline(t *testing.T) {
	g := New(Config{Path: "/dev/null-modem", Timeout: time.Minute}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	d, err := g.timeout(ctx)
	if err != nil {
		t.Fatalf("timeout err=%v", err)
	}
	if d > 2*time.Second {
		t.Fatalf("timeout not clamped: %v", d)
	}

	cancel()
	if _, err := g.timeout(ctx); err == nil {
		t.Fatalf("expected error on cancelled context")
	}
}
