// internal/writer/status_writer.go
package writer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/gsmlink/internal/status"
)

// linkStatusWriter delivers link snapshots into one status block.
type linkStatusWriter struct {
	plan StatusPlan
	cli  endpointClient

	needFull bool
	last     status.Snapshot
	nameRegs []uint16
}

const statusAreaHoldingRegisters byte = 3

// NewStatusWriter builds a writer for plan over cli.
func NewStatusWriter(plan StatusPlan, cli endpointClient) (StatusWriter, error) {
	if cli == nil {
		return nil, fmt.Errorf("status writer: missing client for endpoint %s", plan.Endpoint)
	}
	if int(plan.BaseSlot)*status.SlotsPerDevice+status.SlotsPerDevice > 0x10000 {
		return nil, fmt.Errorf("status writer: base slot %d out of range", plan.BaseSlot)
	}

	return &linkStatusWriter{
		plan:     plan,
		cli:      cli,
		needFull: true, // full re-assert on first successful write
		last:     status.Snapshot{Health: status.HealthUnknown},
		nameRegs: encodeDeviceNameRegs(plan.DeviceName),
	}, nil
}

// WriteStatus delivers a link status snapshot into status memory.
// On any write failure, the next call re-asserts the full block.
func (sw *linkStatusWriter) WriteStatus(s status.Snapshot) error {
	baseAddr := sw.baseAddr()

	// ------------------------------------------------------------
	// Full block write (identity re-assert)
	// ------------------------------------------------------------
	if sw.needFull {
		if err := sw.cli.WriteRegisters(
			statusAreaHoldingRegisters,
			sw.plan.UnitID,
			baseAddr,
			sw.fullBlockRegs(s),
		); err != nil {
			return fmt.Errorf("status writer: full block write failed: %w", err)
		}

		sw.needFull = false
		sw.last = s
		return nil
	}

	slots := []struct {
		name string
		slot uint16
		have *uint16
		want uint16
	}{
		{"health", status.SlotHealthCode, &sw.last.Health, s.Health},
		{"flags", status.SlotFlags, &sw.last.Flags, s.Flags},
		{"signal_quality", status.SlotSignalQuality, &sw.last.SignalQuality, s.SignalQuality},
		{"signal_dbm", status.SlotSignalDBM, &sw.last.SignalDBM, s.SignalDBM},
	}

	var errs []string
	for _, sl := range slots {
		if *sl.have == sl.want {
			continue
		}
		if err := sw.cli.WriteRegisters(
			statusAreaHoldingRegisters,
			sw.plan.UnitID,
			baseAddr+sl.slot,
			[]uint16{sl.want},
		); err != nil {
			errs = append(errs, fmt.Sprintf("slot%d %s write failed: %v", sl.slot, sl.name, err))
			continue
		}
		*sl.have = sl.want
	}

	if len(errs) > 0 {
		// A partial write leaves the block unknown; re-assert next time.
		sw.needFull = true
		return errors.New("status writer: " + strings.Join(errs, " | "))
	}

	return nil
}

func (sw *linkStatusWriter) baseAddr() uint16 {
	// Each modem owns a fixed SlotsPerDevice block.
	return sw.plan.BaseSlot * status.SlotsPerDevice
}

func (sw *linkStatusWriter) fullBlockRegs(s status.Snapshot) []uint16 {
	regs := status.Encode(s)

	// Device name always lives at the end of the block
	copy(regs[status.SlotDeviceNameStart:status.SlotDeviceNameEnd+1], sw.nameRegs)

	return regs
}

// encodeDeviceNameRegs packs up to 16 ASCII characters into 8 uint16 registers.
// Each register stores two ASCII bytes in big-endian order.
func encodeDeviceNameRegs(name string) []uint16 {
	out := make([]uint16, status.SlotDeviceNameSlots)

	b := []byte(name)
	if len(b) > status.DeviceNameMaxChars {
		b = b[:status.DeviceNameMaxChars]
	}

	for i, c := range b {
		if c < 0x20 || c > 0x7E {
			b[i] = '?'
		}
	}

	for i := 0; i < len(b); i++ {
		if i%2 == 0 {
			out[i/2] |= uint16(b[i]) << 8
		} else {
			out[i/2] |= uint16(b[i])
		}
	}

	return out
}
