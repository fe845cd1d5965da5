// internal/status/encode.go
package status

// Encode converts a Snapshot into the live slots of a status block.
// Layout is protocol-locked. Reserved and name slots are left zero.
// No IO. No side effects.
func Encode(s Snapshot) []uint16 {
	regs := make([]uint16, SlotsPerDevice)

	regs[SlotHealthCode] = s.Health
	regs[SlotFlags] = s.Flags
	regs[SlotSignalQuality] = s.SignalQuality
	regs[SlotSignalDBM] = s.SignalDBM

	return regs
}
