// internal/command/directive_test.go
package command

import "testing"

func TestResolve(t *testing.T) {
	cases := []struct {
		name   string
		bodies []string
		want   Directive
	}{
		{"empty inbox", nil, None},
		{"single start", []string{"pon"}, Start},
		{"single stop", []string{"poff"}, Stop},
		{"last recognized wins", []string{"poff", "pon", "hello", "poff"}, Stop},
		{"start after stop", []string{"poff", "pon"}, Start},
		{"unrecognized only", []string{"hello", "PON", "pon please"}, None},
		{"trailing newline", []string{"pon\r\n"}, None},
		{"padded", []string{" pon ", "poff "}, None},
		{"padded does not override", []string{"pon", " poff"}, Start},
		{"noise does not reset", []string{"pon", "hello"}, Start},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Resolve(tc.bodies); got != tc.want {
				t.Fatalf("Resolve(%q) = %v, want %v", tc.bodies, got, tc.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	if d, ok := Parse("start"); !ok || d != Start {
		t.Fatalf("Parse(start) = %v,%v", d, ok)
	}
	if d, ok := Parse("stop"); !ok || d != Stop {
		t.Fatalf("Parse(stop) = %v,%v", d, ok)
	}
	if _, ok := Parse("none"); ok {
		t.Fatalf("Parse(none) should be rejected")
	}
}
