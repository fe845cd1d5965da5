// internal/config/validate.go
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tamzrod/gsmlink/internal/scheduler"
)

// maxBaseSlot keeps the 20-register status block inside the 16-bit address space.
const maxBaseSlot = 3275

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
// Empty fields are allowed: Normalize fills them in.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}

	// ------------------------------------------------------------
	// SERIAL
	// ------------------------------------------------------------
	if strings.ContainsAny(cfg.Port, "/\\") || strings.Contains(cfg.Port, "..") {
		return fmt.Errorf("port %q must be a device name under /dev, not a path", cfg.Port)
	}
	if cfg.Baud < 0 {
		return fmt.Errorf("baud must be > 0, got %d", cfg.Baud)
	}

	// ------------------------------------------------------------
	// SCHEDULE
	// ------------------------------------------------------------
	for name, spec := range map[string]string{
		"minute": cfg.Schedule.Minute,
		"hourly": cfg.Schedule.Hourly,
		"upload": cfg.Schedule.Upload,
		"hangup": cfg.Schedule.Hangup,
	} {
		if spec == "" {
			continue
		}
		if _, err := scheduler.Parse(spec); err != nil {
			return fmt.Errorf("schedule.%s: %w", name, err)
		}
	}

	// ------------------------------------------------------------
	// PPP
	// ------------------------------------------------------------
	for name, argv := range map[string][]string{
		"dial":   cfg.PPP.Dial,
		"hangup": cfg.PPP.Hangup,
		"route":  cfg.PPP.Route,
	} {
		if argv != nil && (len(argv) == 0 || argv[0] == "") {
			return fmt.Errorf("ppp.%s: program required", name)
		}
	}

	// ------------------------------------------------------------
	// ENDPOINTS
	// ------------------------------------------------------------
	if cfg.Uplink.URL != "" {
		if err := checkURL(cfg.Uplink.URL, "http", "https"); err != nil {
			return fmt.Errorf("uplink.url: %w", err)
		}
	}
	if cfg.SignalK.URL != "" {
		if err := checkURL(cfg.SignalK.URL, "ws", "wss"); err != nil {
			return fmt.Errorf("signalk.url: %w", err)
		}
	}

	// ------------------------------------------------------------
	// TIMEOUTS
	// ------------------------------------------------------------
	if cfg.Uplink.TimeoutMs < 0 || cfg.Timeouts.DeviceMs < 0 || cfg.Timeouts.CommandMs < 0 {
		return fmt.Errorf("timeouts must be >= 0")
	}

	// ------------------------------------------------------------
	// STATUS MEMORY (OPT-IN)
	// ------------------------------------------------------------
	if sm := cfg.StatusMemory; sm != nil {
		if sm.Endpoint == "" {
			return fmt.Errorf("status_memory.endpoint is required when status_memory is set")
		}
		if sm.UnitID < 0 || sm.UnitID > 255 {
			return fmt.Errorf("status_memory.unit_id %d out of range 0-255", sm.UnitID)
		}
		if sm.BaseSlot < 0 || sm.BaseSlot > maxBaseSlot {
			return fmt.Errorf("status_memory.base_slot %d out of range 0-%d", sm.BaseSlot, maxBaseSlot)
		}
		if sm.TimeoutMs < 0 {
			return fmt.Errorf("status_memory.timeout_ms must be >= 0")
		}
		// device_name sanity (ASCII only)
		for i := 0; i < len(sm.DeviceName); i++ {
			if sm.DeviceName[i] > 0x7F {
				return fmt.Errorf("status_memory.device_name must contain ASCII characters only")
			}
		}
	}

	// ------------------------------------------------------------
	// LOG
	// ------------------------------------------------------------
	switch strings.ToLower(cfg.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q: want debug, info, warn or error", cfg.Log.Level)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format %q: want text or json", cfg.Log.Format)
	}

	return nil
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%q: scheme must be one of %s", raw, strings.Join(schemes, ", "))
}
