// internal/config/normalize.go
package config

import (
	"github.com/tamzrod/gsmlink/internal/netbridge"
	"github.com/tamzrod/gsmlink/internal/scheduler"
	"github.com/tamzrod/gsmlink/internal/uplink"
	"github.com/tamzrod/gsmlink/internal/vessel"
)

const (
	DefaultPort            = "serial0"
	DefaultBaud            = 115200
	DefaultUplinkTimeoutMs = 30000
	DefaultDeviceMs        = 10000
	DefaultCommandMs       = 60000
	DefaultStatusTimeoutMs = 2000
)

// Normalize applies post-validation defaults.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	if cfg.Baud == 0 {
		cfg.Baud = DefaultBaud
	}

	// ------------------------------------------------------------
	// SCHEDULE
	// ------------------------------------------------------------
	setDefault(&cfg.Schedule.Minute, scheduler.EveryMinute)
	setDefault(&cfg.Schedule.Hourly, scheduler.TopOfHour)
	setDefault(&cfg.Schedule.Upload, scheduler.HourPlus2)
	setDefault(&cfg.Schedule.Hangup, scheduler.HourPlus5)

	// ------------------------------------------------------------
	// PPP
	// ------------------------------------------------------------
	def := netbridge.DefaultCommands()
	if cfg.PPP.Dial == nil {
		cfg.PPP.Dial = def.Dial
	}
	if cfg.PPP.Hangup == nil {
		cfg.PPP.Hangup = def.Hangup
	}
	if cfg.PPP.Route == nil {
		cfg.PPP.Route = def.AddRoute
	}

	// ------------------------------------------------------------
	// ENDPOINTS + TIMEOUTS
	// ------------------------------------------------------------
	setDefault(&cfg.Uplink.URL, uplink.DefaultURL)
	setDefault(&cfg.SignalK.URL, vessel.DefaultURL)

	if cfg.Uplink.TimeoutMs == 0 {
		cfg.Uplink.TimeoutMs = DefaultUplinkTimeoutMs
	}
	if cfg.Timeouts.DeviceMs == 0 {
		cfg.Timeouts.DeviceMs = DefaultDeviceMs
	}
	if cfg.Timeouts.CommandMs == 0 {
		cfg.Timeouts.CommandMs = DefaultCommandMs
	}

	// ------------------------------------------------------------
	// STATUS MEMORY (OPT-IN)
	// ------------------------------------------------------------
	if sm := cfg.StatusMemory; sm != nil {
		if sm.TimeoutMs == 0 {
			sm.TimeoutMs = DefaultStatusTimeoutMs
		}
		if sm.DeviceName == "" {
			sm.DeviceName = cfg.Port
		}
		// Truncate to max 16 characters
		if len(sm.DeviceName) > 16 {
			sm.DeviceName = sm.DeviceName[:16]
		}
	}

	setDefault(&cfg.Log.Level, "info")
	setDefault(&cfg.Log.Format, "text")
}

func setDefault(field *string, v string) {
	if *field == "" {
		*field = v
	}
}
