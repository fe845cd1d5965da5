// internal/command/directive.go
package command

// Directive is the link command resolved from one inbox read.
type Directive int

const (
	None Directive = iota
	Start
	Stop
)

// Literal SMS bodies, matched exactly and case-sensitively.
const (
	BodyStart = "pon"
	BodyStop  = "poff"
)

func (d Directive) String() string {
	switch d {
	case Start:
		return "start"
	case Stop:
		return "stop"
	default:
		return "none"
	}
}

// Resolve folds message bodies in arrival order.
// The last recognized body wins; anything else is ignored.
// No message ever sets None, so an empty or unrecognized batch stays None.
// Bodies are compared as decoded: " pon" or "pon\r\n" are not directives.
func Resolve(bodies []string) Directive {
	d := None
	for _, b := range bodies {
		switch b {
		case BodyStart:
			d = Start
		case BodyStop:
			d = Stop
		}
	}
	return d
}

// Parse maps a single directive name ("start", "stop") used by the HTTP API.
func Parse(name string) (Directive, bool) {
	switch name {
	case "start":
		return Start, true
	case "stop":
		return Stop, true
	}
	return None, false
}
