// internal/status/snapshot.go
package status

import "github.com/tamzrod/gsmlink/internal/link"

// Snapshot represents exactly what the writer is allowed to deliver.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Health        uint16
	Flags         uint16
	SignalQuality uint16
	SignalDBM     uint16 // int16 bits
}

// FromState flattens a link state into register values.
func FromState(s link.State) Snapshot {
	out := Snapshot{
		Health:        HealthOffline,
		SignalQuality: SignalUnknown,
	}

	switch {
	case s.DeviceOpen && s.ModemInitialized:
		out.Health = HealthOnline
	case s.DeviceOpen:
		out.Health = HealthDegraded
	}

	if s.DeviceOpen {
		out.Flags |= FlagDeviceOpen
	}
	if s.ModemInitialized {
		out.Flags |= FlagModemInitialized
	}
	if s.LinkUp {
		out.Flags |= FlagLinkUp
	}
	if s.RouteAdded {
		out.Flags |= FlagRouteAdded
	}
	if s.UplinkSynced {
		out.Flags |= FlagUplinkSynced
	}

	if s.LastSignal != nil && s.LastSignal.Quality >= 0 && s.LastSignal.Quality <= 0xFFFF {
		out.SignalQuality = uint16(s.LastSignal.Quality)
		out.SignalDBM = uint16(int16(s.LastSignal.DBM))
	}

	return out
}
