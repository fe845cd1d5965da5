// internal/config/config.go
package config

type Config struct {
	// Port is the serial device name under /dev.
	Port  string `yaml:"port"`
	Baud  int    `yaml:"baud"`
	Trace bool   `yaml:"trace"`

	Schedule     ScheduleConfig      `yaml:"schedule"`
	PPP          PPPConfig           `yaml:"ppp"`
	Uplink       UplinkConfig        `yaml:"uplink"`
	SignalK      SignalKConfig       `yaml:"signalk"`
	Timeouts     TimeoutsConfig      `yaml:"timeouts"`
	StatusMemory *StatusMemoryConfig `yaml:"status_memory"` // optional, opt-in
	HTTP         HTTPConfig          `yaml:"http"`
	Log          LogConfig           `yaml:"log"`
}

// ---- SCHEDULE ----

// ScheduleConfig holds six-field cron specs (seconds first).
type ScheduleConfig struct {
	Minute string `yaml:"minute"`
	Hourly string `yaml:"hourly"`
	Upload string `yaml:"upload"`
	Hangup string `yaml:"hangup"`
}

// ---- PPP ----

// PPPConfig holds argv lists; the first element is the program.
type PPPConfig struct {
	Dial   []string `yaml:"dial"`
	Hangup []string `yaml:"hangup"`
	Route  []string `yaml:"route"`
}

// ---- UPLINK ----

type UplinkConfig struct {
	URL       string `yaml:"url"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// ---- SIGNAL K ----

type SignalKConfig struct {
	URL string `yaml:"url"`
}

// ---- TIMEOUTS ----

type TimeoutsConfig struct {
	DeviceMs  int `yaml:"device_ms"`
	CommandMs int `yaml:"command_ms"`
}

// ---- STATUS MEMORY ----

type StatusMemoryConfig struct {
	Endpoint   string `yaml:"endpoint"`
	UnitID     int    `yaml:"unit_id"`
	BaseSlot   int    `yaml:"base_slot"`
	DeviceName string `yaml:"device_name"`
	TimeoutMs  int    `yaml:"timeout_ms"`
}

// ---- HTTP ----

// HTTPConfig enables the local API when Listen is set.
type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

// ---- LOG ----

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DevicePath is the serial device the modem is attached to.
func (c *Config) DevicePath() string {
	return "/dev/" + c.Port
}
