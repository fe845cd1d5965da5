// internal/status/constants.go
package status

// Link Status Block layout constants.
// These values define the protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerDevice is the fixed number of logical slots per modem.
const SlotsPerDevice = 20

// ---- SLOT INDICES ----

// SlotHealthCode holds the modem health state.
const SlotHealthCode = 0

// SlotFlags holds the link flag bitmask.
const SlotFlags = 1

// SlotSignalQuality holds the CSQ rssi, 99 when never sampled.
const SlotSignalQuality = 2

// SlotSignalDBM holds the signal strength in dBm as two's-complement int16.
const SlotSignalDBM = 3

// ---- RESERVED RANGE ----

// Slots 4-10 are reserved for future use.
const SlotReservedStart = 4
const SlotReservedEnd = 10

// ---- DEVICE NAME ----

// SlotDeviceNameStart is the first slot used for the device name.
// Device name is always placed at the END of the status block.
const SlotDeviceNameStart = 11

// SlotDeviceNameSlots is the number of slots reserved for the device name.
const SlotDeviceNameSlots = 8

// SlotDeviceNameEnd is the last slot used for the device name (inclusive).
const SlotDeviceNameEnd = SlotDeviceNameStart + SlotDeviceNameSlots - 1

// ---- LIMITS ----

// DeviceNameMaxChars is the maximum number of ASCII characters stored for device name.
const DeviceNameMaxChars = 16

// ---- HEALTH CODES ----

// HealthUnknown represents the boot state, before the first publication.
const HealthUnknown uint16 = 0

// HealthOnline represents an open, initialized modem.
const HealthOnline uint16 = 1

// HealthDegraded represents an open modem that has not finished init.
const HealthDegraded uint16 = 2

// HealthOffline represents a closed serial device.
const HealthOffline uint16 = 3

// ---- FLAG BITS ----

const (
	FlagDeviceOpen uint16 = 1 << iota
	FlagModemInitialized
	FlagLinkUp
	FlagRouteAdded
	FlagUplinkSynced
)

// SignalUnknown is the CSQ value a modem reports when it cannot tell.
const SignalUnknown uint16 = 99
