// internal/logging/logging_test.go
package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, Config{Level: "info"})

	l.Debug(context.Background(), "hidden")
	l.Info(context.Background(), "shown", String("op", "dial"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line leaked at info level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "op=dial") {
		t.Fatalf("info line missing fields: %q", out)
	}
}

func TestJSONFormatAndWith(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, Config{Level: "debug", Format: "json"}).With(String("component", "link"))

	l.Error(context.Background(), "exec error", Err(errors.New("boom")))

	out := buf.String()
	if !strings.Contains(out, `"component":"link"`) {
		t.Fatalf("With field missing: %q", out)
	}
	if !strings.Contains(out, `"level":"ERROR"`) {
		t.Fatalf("level missing: %q", out)
	}
}

func TestPrintfAdapterLogsAtDebug(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, Config{Level: "debug"})

	Printf(l).Printf("w: %s\r\n", "AT+CSQ")

	if !strings.Contains(buf.String(), "AT+CSQ") {
		t.Fatalf("printf line missing: %q", buf.String())
	}
}
