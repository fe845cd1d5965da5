// internal/device/signal.go
package device

import (
	"fmt"
	"strings"
	"time"
)

// rssiUnknown is the +CSQ value for "not known or not detectable".
const rssiUnknown = 99

// Signal is one +CSQ sample.
// JSON names follow the telemetry payload the remote endpoint expects.
type Signal struct {
	Quality   int       `json:"signalQuality"`  // rssi 0..31, 99 unknown
	DBM       int       `json:"signalStrength"` // -113 + 2*rssi, 0 when unknown
	BER       int       `json:"ber"`
	SampledAt time.Time `json:"sampledAt"`
}

// Known reports whether the modem could measure the signal.
func (s Signal) Known() bool {
	return s.Quality >= 0 && s.Quality <= 31
}

// parseCSQ extracts rssi and ber from the info lines of AT+CSQ.
func parseCSQ(info []string) (Signal, error) {
	for _, line := range info {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "+CSQ:") {
			continue
		}

		var rssi, ber int
		if _, err := fmt.Sscanf(line, "+CSQ: %d,%d", &rssi, &ber); err != nil {
			return Signal{}, fmt.Errorf("device: parse %q: %w", line, err)
		}
		if rssi < 0 || (rssi > 31 && rssi != rssiUnknown) {
			return Signal{}, fmt.Errorf("device: rssi %d out of range", rssi)
		}

		s := Signal{Quality: rssi, BER: ber}
		if s.Known() {
			s.DBM = -113 + rssi*2
		}
		return s, nil
	}
	return Signal{}, fmt.Errorf("device: no +CSQ line in response")
}
