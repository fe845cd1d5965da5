// internal/writer/types.go
package writer

import "github.com/tamzrod/gsmlink/internal/status"

// StatusPlan locates the link status block in status memory.
type StatusPlan struct {
	Endpoint   string
	UnitID     uint8
	BaseSlot   uint16
	DeviceName string
}

// endpointClient is the exact contract the writer uses.
type endpointClient interface {
	WriteRegisters(area byte, unitID uint8, addr uint16, regs []uint16) error
}

// StatusWriter is the delivery-only contract for link status.
// It receives a snapshot and writes it verbatim.
type StatusWriter interface {
	WriteStatus(s status.Snapshot) error
}
