// internal/link/machine.go
package link

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/remeh/sizedwaitgroup"

	"github.com/tamzrod/gsmlink/internal/command"
	"github.com/tamzrod/gsmlink/internal/device"
	"github.com/tamzrod/gsmlink/internal/logging"
	"github.com/tamzrod/gsmlink/internal/uplink"
)

// ErrStopped is returned when an event is offered after Run returned.
var ErrStopped = errors.New("link: machine stopped")

const queueSize = 32

// ------------------------------------------------------------
// Capabilities
// ------------------------------------------------------------

// Device is the modem side of the machine.
type Device interface {
	Open(ctx context.Context) error
	InitModem(ctx context.Context) error
	SampleSignal(ctx context.Context) (device.Signal, error)
	ReadInbox(ctx context.Context) ([]device.Message, error)
	ClearInbox(ctx context.Context) error
}

// Network runs the PPP and routing commands.
type Network interface {
	Dial(ctx context.Context) error
	Hangup(ctx context.Context) error
	AddRoute(ctx context.Context) error
}

// Uploader delivers one telemetry payload.
type Uploader interface {
	Post(ctx context.Context, p uplink.Payload) error
}

// Snapshotter provides the vessel data model for telemetry.
type Snapshotter interface {
	Snapshot() map[string]any
}

// Observer is told about every state change, from the machine goroutine.
// Implementations must not block.
type Observer interface {
	ObserveState(State)
}

// Recorder counts what the machine does. Called from the machine goroutine.
type Recorder interface {
	RecordTick(Trigger)
	RecordCall(op Op, took time.Duration, err error)
	RecordDirective(command.Directive)
}

// Timeouts bound each capability call.
type Timeouts struct {
	Device  time.Duration // open, init, signal, inbox
	Command time.Duration // dial, hangup, route
	Uplink  time.Duration // telemetry POST
}

const (
	defaultDeviceTimeout  = 10 * time.Second
	defaultCommandTimeout = 60 * time.Second
	defaultUplinkTimeout  = 30 * time.Second
)

// Deps wires the machine. Device, Network and Uplink are required.
type Deps struct {
	Device    Device
	Network   Network
	Uplink    Uploader
	Vessel    Snapshotter
	Events    <-chan device.Event
	Log       logging.Logger
	Recorder  Recorder
	Observers []Observer
	Timeouts  Timeouts
}

// ------------------------------------------------------------
// Machine
// ------------------------------------------------------------

// Machine owns State. One goroutine (Run) consumes every event;
// capability calls run as tasks whose outcomes come back as events.
type Machine struct {
	dev       Device
	net       Network
	up        Uploader
	vessel    Snapshotter
	events    <-chan device.Event
	log       logging.Logger
	rec       Recorder
	observers []Observer
	timeouts  Timeouts

	queue chan any
	done  chan struct{}
	swg   sizedwaitgroup.SizedWaitGroup
	pump  sync.WaitGroup

	// owned by Run
	state    State
	inflight [opCount]bool

	// dial and hangup share one slot; the other op waits here
	pendingLink Op
	hasPending  bool

	mu        sync.RWMutex
	published State
}

type tickEvent struct {
	trigger Trigger
}

type deviceEvent struct {
	ev device.Event
}

type directiveEvent struct {
	directive command.Directive
	source    string
}

type result struct {
	op   Op
	err  error
	took time.Duration

	signal   device.Signal
	messages []device.Message
}

// New builds a stopped machine with all flags false.
func New(d Deps) (*Machine, error) {
	if d.Device == nil {
		return nil, errors.New("link: device required")
	}
	if d.Network == nil {
		return nil, errors.New("link: network required")
	}
	if d.Uplink == nil {
		return nil, errors.New("link: uplink required")
	}
	if d.Log == nil {
		d.Log = logging.Noop()
	}
	if d.Recorder == nil {
		d.Recorder = nopRecorder{}
	}
	if d.Timeouts.Device <= 0 {
		d.Timeouts.Device = defaultDeviceTimeout
	}
	if d.Timeouts.Command <= 0 {
		d.Timeouts.Command = defaultCommandTimeout
	}
	if d.Timeouts.Uplink <= 0 {
		d.Timeouts.Uplink = defaultUplinkTimeout
	}

	return &Machine{
		dev:       d.Device,
		net:       d.Network,
		up:        d.Uplink,
		vessel:    d.Vessel,
		events:    d.Events,
		log:       d.Log,
		rec:       d.Recorder,
		observers: d.Observers,
		timeouts:  d.Timeouts,
		queue:     make(chan any, queueSize),
		done:      make(chan struct{}),
		// at most one task per op is ever in flight
		swg: sizedwaitgroup.New(int(opCount)),
	}, nil
}

// Run hangs up any leftover PPP session, then processes events until ctx
// is done. Outstanding tasks are cancelled and waited for before it returns.
// Run must be called once.
func (m *Machine) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		close(m.done)
		m.swg.Wait()
		m.pump.Wait()
		m.log.Info(context.Background(), "Link state machine stopped")
	}()

	m.log.Info(ctx, "Link state machine started")
	if m.events != nil {
		m.pump.Add(1)
		go m.forward(ctx)
	}
	m.notify()
	m.hangup(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case e := <-m.queue:
			switch e := e.(type) {
			case tickEvent:
				m.onTick(ctx, e.trigger)
			case directiveEvent:
				m.onDirective(ctx, e.directive, e.source)
			case deviceEvent:
				m.onDevice(ctx, e.ev)
			case result:
				m.apply(ctx, e)
				m.releaseLink(ctx, e.op)
				// recorded once the outcome is visible through State
				m.publish()
				m.rec.RecordCall(e.op, e.took, e.err)
			}
		}

		m.publish()
	}
}

// Tick queues one firing of a calendar trigger.
func (m *Machine) Tick(t Trigger) error {
	return m.enqueue(tickEvent{trigger: t})
}

// Command queues a start/stop directive from outside the SMS channel.
func (m *Machine) Command(d command.Directive) error {
	return m.enqueue(directiveEvent{directive: d, source: "api"})
}

// State returns the last published state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.published.Clone()
}

// forward moves device events onto the queue that carries task results,
// so the loop sees them in one order.
func (m *Machine) forward(ctx context.Context) {
	defer m.pump.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-m.events:
			if !ok {
				return
			}
			select {
			case m.queue <- deviceEvent{ev: ev}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (m *Machine) enqueue(e any) error {
	select {
	case <-m.done:
		return ErrStopped
	default:
	}
	select {
	case m.queue <- e:
		return nil
	case <-m.done:
		return ErrStopped
	}
}

// ------------------------------------------------------------
// Transitions
// ------------------------------------------------------------

func (m *Machine) onTick(ctx context.Context, t Trigger) {
	m.rec.RecordTick(t)
	s := m.state

	switch t {
	case TriggerMinute:
		switch {
		case !s.DeviceOpen:
			m.open(ctx)
		case !s.ModemInitialized:
			m.initModem(ctx)
		default:
			m.sampleSignal(ctx)
			m.readInbox(ctx)
		}
		if s.LinkUp && !s.RouteAdded {
			m.addRoute(ctx)
		}
		if s.LinkUp && s.RouteAdded && !s.UplinkSynced {
			m.upload(ctx)
		}

	case TriggerHourly:
		if !s.LinkUp {
			m.dial(ctx)
		}

	case TriggerUpload:
		if s.LinkUp {
			m.upload(ctx)
		}

	case TriggerHangup:
		if s.LinkUp {
			m.hangup(ctx)
		}
	}
}

// onDirective ignores device state: a directive always reaches the network.
func (m *Machine) onDirective(ctx context.Context, d command.Directive, source string) {
	if d == command.None {
		return
	}
	m.rec.RecordDirective(d)
	m.log.Info(ctx, "Link directive", logging.String("directive", d.String()), logging.String("source", source))

	switch d {
	case command.Start:
		m.dial(ctx)
	case command.Stop:
		m.hangup(ctx)
	}
}

func (m *Machine) onDevice(ctx context.Context, ev device.Event) {
	switch ev.Kind {
	case device.EventClosed:
		m.log.Warn(ctx, "Modem closed")
		m.state.DeviceOpen = false
		m.state.ModemInitialized = false

	case device.EventNewMessage:
		if m.state.DeviceOpen && m.state.ModemInitialized {
			m.readInbox(ctx)
		}
	}
}

func (m *Machine) open(ctx context.Context) {
	m.log.Debug(ctx, "Opening modem")
	m.launch(ctx, OpOpen, func(c context.Context) result {
		return result{err: m.dev.Open(c)}
	})
}

func (m *Machine) initModem(ctx context.Context) {
	m.log.Debug(ctx, "Initializing modem")
	m.launch(ctx, OpInit, func(c context.Context) result {
		return result{err: m.dev.InitModem(c)}
	})
}

func (m *Machine) sampleSignal(ctx context.Context) {
	m.launch(ctx, OpSignal, func(c context.Context) result {
		sig, err := m.dev.SampleSignal(c)
		return result{err: err, signal: sig}
	})
}

// readInbox reads every message and, if there were any, clears the inbox
// in the same task. A failed clear is reported as the task's error.
func (m *Machine) readInbox(ctx context.Context) {
	m.launch(ctx, OpInbox, func(c context.Context) result {
		msgs, err := m.dev.ReadInbox(c)
		if err != nil || len(msgs) == 0 {
			return result{err: err}
		}
		return result{err: m.dev.ClearInbox(c), messages: msgs}
	})
}

func (m *Machine) addRoute(ctx context.Context) {
	m.launch(ctx, OpRoute, func(c context.Context) result {
		return result{err: m.net.AddRoute(c)}
	})
}

// dial resets UplinkSynced as soon as the dial is issued, whatever its outcome.
func (m *Machine) dial(ctx context.Context) {
	if m.deferLink(ctx, OpDial) {
		return
	}
	if m.launch(ctx, OpDial, func(c context.Context) result {
		return result{err: m.net.Dial(c)}
	}) {
		m.state.UplinkSynced = false
	}
}

func (m *Machine) hangup(ctx context.Context) {
	if m.deferLink(ctx, OpHangup) {
		return
	}
	m.launch(ctx, OpHangup, func(c context.Context) result {
		return result{err: m.net.Hangup(c)}
	})
}

// deferLink holds op while the opposite link op is in flight. Only the
// latest request is held; asking again for the op already running drops it.
func (m *Machine) deferLink(ctx context.Context, op Op) bool {
	other := OpHangup
	if op == OpHangup {
		other = OpDial
	}
	switch {
	case m.inflight[other]:
		m.pendingLink, m.hasPending = op, true
		m.log.Debug(ctx, "Link busy, deferring", logging.String("op", op.String()), logging.String("busy", other.String()))
		return true
	case m.inflight[op]:
		m.hasPending = false
	}
	return false
}

// releaseLink issues the held link op once the running one has been applied.
func (m *Machine) releaseLink(ctx context.Context, done Op) {
	if (done != OpDial && done != OpHangup) || !m.hasPending {
		return
	}
	op := m.pendingLink
	m.hasPending = false
	switch op {
	case OpDial:
		m.dial(ctx)
	case OpHangup:
		m.hangup(ctx)
	}
}

func (m *Machine) upload(ctx context.Context) {
	var gsm *device.Signal
	if m.state.LastSignal != nil {
		sig := *m.state.LastSignal
		gsm = &sig
	}
	m.launch(ctx, OpUpload, func(c context.Context) result {
		p := uplink.Payload{JSON: map[string]any{}, GSM: gsm}
		if m.vessel != nil {
			p.JSON = m.vessel.Snapshot()
		}
		return result{err: m.up.Post(c, p)}
	})
}

// ------------------------------------------------------------
// Outcomes
// ------------------------------------------------------------

var failures = [opCount]string{
	OpOpen:   "Failed to open modem",
	OpInit:   "Failed to initialize modem",
	OpSignal: "Failed to read signal strength",
	OpInbox:  "Failed to read SMS inbox",
	OpRoute:  "Failed to add route",
	OpUpload: "Failed to update server",
	OpDial:   "Failed to start PPP",
	OpHangup: "Failed to stop PPP",
}

func (m *Machine) apply(ctx context.Context, r result) {
	m.inflight[r.op] = false

	s := &m.state

	if r.err != nil {
		m.log.Error(ctx, failures[r.op], logging.String("op", r.op.String()), logging.Err(r.err))
		// the modem went away under us: reopen on the next minute
		if errors.Is(r.err, device.ErrNotOpen) && deviceOp(r.op) {
			s.DeviceOpen = false
			s.ModemInitialized = false
		}
		return
	}
	switch r.op {
	case OpOpen:
		m.log.Info(ctx, "Modem opened")
		s.DeviceOpen = true

	case OpInit:
		// the device may have closed while init was running
		if s.DeviceOpen {
			m.log.Info(ctx, "Modem initialized")
			s.ModemInitialized = true
		}

	case OpSignal:
		sig := r.signal
		s.LastSignal = &sig

	case OpInbox:
		if len(r.messages) == 0 {
			return
		}
		bodies := make([]string, 0, len(r.messages))
		for _, msg := range r.messages {
			bodies = append(bodies, msg.Body)
		}
		m.log.Info(ctx, "SMS received", logging.Int("count", len(bodies)))
		m.onDirective(ctx, command.Resolve(bodies), "sms")

	case OpRoute:
		if s.LinkUp {
			s.RouteAdded = true
		}

	case OpUpload:
		if s.LinkUp {
			s.UplinkSynced = true
		}

	case OpDial:
		m.log.Info(ctx, "PPP started")
		s.LinkUp = true
		s.UplinkSynced = false

	case OpHangup:
		m.log.Info(ctx, "PPP stopped")
		s.LinkUp = false
		s.RouteAdded = false
	}
}

// ------------------------------------------------------------
// Tasks
// ------------------------------------------------------------

// launch starts fn as a task unless op is already in flight.
func (m *Machine) launch(ctx context.Context, op Op, fn func(context.Context) result) bool {
	if m.inflight[op] {
		m.log.Debug(ctx, "Already in flight, skipping", logging.String("op", op.String()))
		return false
	}
	if err := m.swg.AddWithContext(ctx); err != nil {
		return false
	}
	m.inflight[op] = true

	timeout := m.timeoutFor(op)
	go func() {
		defer m.swg.Done()

		tctx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		r := fn(tctx)
		cancel()

		r.op = op
		r.took = time.Since(start)

		// outcomes after shutdown are dropped
		select {
		case m.queue <- r:
		case <-ctx.Done():
		}
	}()
	return true
}

func deviceOp(op Op) bool {
	switch op {
	case OpOpen, OpInit, OpSignal, OpInbox:
		return true
	}
	return false
}

func (m *Machine) timeoutFor(op Op) time.Duration {
	switch op {
	case OpRoute, OpDial, OpHangup:
		return m.timeouts.Command
	case OpUpload:
		return m.timeouts.Uplink
	default:
		return m.timeouts.Device
	}
}

// ------------------------------------------------------------
// Publication
// ------------------------------------------------------------

func (m *Machine) publish() {
	m.mu.RLock()
	same := equal(m.published, m.state)
	m.mu.RUnlock()
	if same {
		return
	}
	m.notify()
}

func (m *Machine) notify() {
	snap := m.state.Clone()

	m.mu.Lock()
	m.published = snap
	m.mu.Unlock()

	for _, o := range m.observers {
		o.ObserveState(snap.Clone())
	}
}

func equal(a, b State) bool {
	if a.DeviceOpen != b.DeviceOpen ||
		a.ModemInitialized != b.ModemInitialized ||
		a.LinkUp != b.LinkUp ||
		a.RouteAdded != b.RouteAdded ||
		a.UplinkSynced != b.UplinkSynced {
		return false
	}
	switch {
	case a.LastSignal == nil && b.LastSignal == nil:
		return true
	case a.LastSignal == nil || b.LastSignal == nil:
		return false
	}
	return *a.LastSignal == *b.LastSignal
}

type nopRecorder struct{}

func (nopRecorder) RecordTick(Trigger)                  {}
func (nopRecorder) RecordCall(Op, time.Duration, error) {}
func (nopRecorder) RecordDirective(command.Directive)   {}
