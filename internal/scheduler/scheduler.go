// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/tamzrod/gsmlink/internal/logging"
)

// Default calendar specs, with a leading seconds field.
const (
	EveryMinute = "0 * * * * *" // device upkeep
	TopOfHour   = "0 0 * * * *" // dial
	HourPlus2   = "0 2 * * * *" // telemetry upload
	HourPlus5   = "0 5 * * * *" // hangup
)

var parser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Entry is one named calendar trigger.
type Entry struct {
	Name string
	Spec string
	Fn   func()
}

// Scheduler fires entries on their calendar. Entries only enqueue work;
// a slow Fn delays itself, not the others.
type Scheduler struct {
	cron *cron.Cron
	log  logging.Logger
}

// Parse validates a six-field spec.
func Parse(spec string) (cron.Schedule, error) {
	s, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("scheduler: parse %q: %w", spec, err)
	}
	return s, nil
}

// New registers every entry. Any bad spec fails the whole set.
func New(log logging.Logger, entries ...Entry) (*Scheduler, error) {
	if log == nil {
		log = logging.Noop()
	}

	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cron.PrintfLogger(logging.Printf(log))),
	)

	for _, e := range entries {
		if e.Fn == nil {
			return nil, fmt.Errorf("scheduler: entry %q has no func", e.Name)
		}
		if _, err := Parse(e.Spec); err != nil {
			return nil, err
		}

		name, fn := e.Name, e.Fn
		if _, err := c.AddFunc(e.Spec, func() {
			log.Debug(context.Background(), "Trigger fired", logging.String("trigger", name))
			fn()
		}); err != nil {
			return nil, fmt.Errorf("scheduler: add %q: %w", name, err)
		}
	}

	return &Scheduler{cron: c, log: log}, nil
}

// Start runs the calendar in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the calendar and waits for running entries to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
