// internal/link/state.go
package link

import "github.com/tamzrod/gsmlink/internal/device"

// State is the modem and link lifecycle as the machine believes it to be.
// Reset to all-false at start; never persisted.
type State struct {
	DeviceOpen       bool           `json:"deviceOpen"`
	ModemInitialized bool           `json:"modemInitialized"`
	LinkUp           bool           `json:"linkUp"`
	RouteAdded       bool           `json:"routeAdded"`
	UplinkSynced     bool           `json:"uplinkSynced"`
	LastSignal       *device.Signal `json:"lastSignal,omitempty"`
}

// Clone returns a copy that shares nothing with s.
func (s State) Clone() State {
	if s.LastSignal != nil {
		sig := *s.LastSignal
		s.LastSignal = &sig
	}
	return s
}

// Trigger is one of the four calendar triggers.
type Trigger int

const (
	TriggerMinute Trigger = iota + 1
	TriggerHourly
	TriggerUpload
	TriggerHangup
)

func (t Trigger) String() string {
	switch t {
	case TriggerMinute:
		return "minute"
	case TriggerHourly:
		return "hourly"
	case TriggerUpload:
		return "upload"
	case TriggerHangup:
		return "hangup"
	}
	return "unknown"
}

// Op names a capability call issued by the machine.
type Op int

const (
	OpOpen Op = iota
	OpInit
	OpSignal
	OpInbox
	OpRoute
	OpUpload
	OpDial
	OpHangup

	opCount
)

var opNames = [opCount]string{
	OpOpen:   "open",
	OpInit:   "init",
	OpSignal: "signal",
	OpInbox:  "inbox",
	OpRoute:  "route",
	OpUpload: "upload",
	OpDial:   "dial",
	OpHangup: "hangup",
}

func (o Op) String() string {
	if o < 0 || o >= opCount {
		return "unknown"
	}
	return opNames[o]
}

// Ops lists every capability call in declaration order.
func Ops() []Op {
	out := make([]Op, 0, opCount)
	for o := Op(0); o < opCount; o++ {
		out = append(out, o)
	}
	return out
}
