// internal/writer/builder.go
package writer

import (
	"errors"
	"time"

	"github.com/tamzrod/gsmlink/internal/config"
	"github.com/tamzrod/gsmlink/internal/logging"
	wmodbus "github.com/tamzrod/gsmlink/internal/writer/modbus"
)

// BuildPlan converts the status_memory section into a StatusPlan.
// Assumes config has already passed validation.
func BuildPlan(sm config.StatusMemoryConfig) (StatusPlan, error) {
	if sm.Endpoint == "" {
		return StatusPlan{}, errors.New("writer: status_memory.endpoint required")
	}
	return StatusPlan{
		Endpoint:   sm.Endpoint,
		UnitID:     uint8(sm.UnitID),
		BaseSlot:   uint16(sm.BaseSlot),
		DeviceName: sm.DeviceName,
	}, nil
}

// BuildPublisher wires plan, Modbus client and writer. A nil section
// disables status memory and returns a nil publisher.
func BuildPublisher(sm *config.StatusMemoryConfig, log logging.Logger) (*Publisher, func() error, error) {
	noop := func() error { return nil }
	if sm == nil {
		return nil, noop, nil
	}

	plan, err := BuildPlan(*sm)
	if err != nil {
		return nil, noop, err
	}

	cli, err := wmodbus.NewEndpointClient(wmodbus.Config{
		Endpoint: plan.Endpoint,
		Timeout:  time.Duration(sm.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return nil, noop, err
	}

	sw, err := NewStatusWriter(plan, cli)
	if err != nil {
		_ = cli.Close()
		return nil, noop, err
	}

	if log == nil {
		log = logging.Noop()
	}
	log = log.With(logging.String("status_endpoint", plan.Endpoint))
	return NewPublisher(sw, log), cli.Close, nil
}
