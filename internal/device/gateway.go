// internal/device/gateway.go
package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/warthog618/modem/at"
	"github.com/warthog618/modem/serial"
	"github.com/warthog618/modem/trace"

	"github.com/tamzrod/gsmlink/internal/logging"
)

const (
	cmdSignal      = "+CSQ"
	cmdListAll     = "+CMGL=4"   // PDU mode: all messages
	cmdDeleteAll   = "+CMGD=1,4" // index ignored, delete all
	cmdPDUMode     = "+CMGF=0"
	cmdNotifyStore = "+CNMI=2,1,0,0,0" // store to SIM, indicate with +CMTI
	indNewMessage  = "+CMTI:"

	defaultBaud    = 115200
	defaultTimeout = 5 * time.Second
	eventBuffer    = 8
)

// ErrNotOpen is returned by modem operations before a successful Open.
var ErrNotOpen = errors.New("device: not open")

// EventKind identifies an asynchronous device event.
type EventKind int

const (
	EventClosed EventKind = iota + 1
	EventNewMessage
)

func (k EventKind) String() string {
	switch k {
	case EventClosed:
		return "closed"
	case EventNewMessage:
		return "new_message"
	}
	return "unknown"
}

// Event is raised by the gateway independently of any caller.
type Event struct {
	Kind EventKind
	At   time.Time
}

// Config is the serial side of the modem.
type Config struct {
	Path    string
	Baud    int
	Timeout time.Duration // per AT command unless the context is shorter
	Trace   bool          // log every line exchanged with the modem
}

// Gateway talks to one GSM modem over a serial port.
// Calls are safe from multiple goroutines; the AT layer serializes commands.
type Gateway struct {
	cfg Config
	log logging.Logger

	openPort func(path string, baud int) (io.ReadWriteCloser, error)

	mu    sync.Mutex
	port  io.Closer
	modem *at.AT

	events chan Event
}

// New creates a closed gateway. Nothing touches the port until Open.
func New(cfg Config, log logging.Logger) *Gateway {
	if cfg.Baud <= 0 {
		cfg.Baud = defaultBaud
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Gateway{
		cfg:    cfg,
		log:    log.With(logging.String("device", cfg.Path)),
		events: make(chan Event, eventBuffer),

		openPort: openSerial,
	}
}

func openSerial(path string, baud int) (io.ReadWriteCloser, error) {
	p, err := serial.New(serial.WithPort(path), serial.WithBaud(baud))
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Events delivers closed and new-message events for the gateway's lifetime.
func (g *Gateway) Events() <-chan Event {
	return g.events
}

// Open opens the serial device. Opening an already open device is a no-op.
func (g *Gateway) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.modem != nil {
		return nil
	}

	p, err := g.openPort(g.cfg.Path, g.cfg.Baud)
	if err != nil {
		return fmt.Errorf("device: open %s: %w", g.cfg.Path, err)
	}

	var mio io.ReadWriter = p
	if g.cfg.Trace {
		mio = trace.New(p, trace.WithLogger(logging.Printf(g.log)))
	}

	a := at.New(mio, at.WithTimeout(g.cfg.Timeout))
	g.port = p
	g.modem = a

	go g.watch(a)
	return nil
}

// InitModem runs the AT init sequence, then switches to PDU mode.
// PDU mode is only attempted once init succeeded.
func (g *Gateway) InitModem(ctx context.Context) error {
	a, err := g.current()
	if err != nil {
		return err
	}

	timeout, err := g.timeout(ctx)
	if err != nil {
		return err
	}

	if err := a.Init(at.WithTimeout(timeout)); err != nil {
		return fmt.Errorf("device: init: %w", err)
	}
	if err := a.AddIndication(indNewMessage, g.onNewMessage); err != nil && !errors.Is(err, at.ErrIndicationExists) {
		return fmt.Errorf("device: init: register %s: %w", indNewMessage, err)
	}
	if _, err := g.command(ctx, a, cmdNotifyStore); err != nil {
		return fmt.Errorf("device: init: %w", err)
	}

	if _, err := g.command(ctx, a, cmdPDUMode); err != nil {
		return fmt.Errorf("device: set mode: %w", err)
	}
	return nil
}

// SampleSignal queries +CSQ.
func (g *Gateway) SampleSignal(ctx context.Context) (Signal, error) {
	a, err := g.current()
	if err != nil {
		return Signal{}, err
	}

	info, err := g.command(ctx, a, cmdSignal)
	if err != nil {
		return Signal{}, fmt.Errorf("device: signal: %w", err)
	}

	s, err := parseCSQ(info)
	if err != nil {
		return Signal{}, err
	}
	s.SampledAt = time.Now()
	return s, nil
}

// ReadInbox lists every SIM message in index order.
// PDUs that fail to decode are logged and dropped from the result.
func (g *Gateway) ReadInbox(ctx context.Context) ([]Message, error) {
	a, err := g.current()
	if err != nil {
		return nil, err
	}

	info, err := g.command(ctx, a, cmdListAll)
	if err != nil {
		return nil, fmt.Errorf("device: list inbox: %w", err)
	}

	msgs, errs := parseListing(info)
	for _, e := range errs {
		g.log.Warn(ctx, "Skipping undecodable SMS", logging.Err(e))
	}
	return msgs, nil
}

// ClearInbox deletes every SIM message.
func (g *Gateway) ClearInbox(ctx context.Context) error {
	a, err := g.current()
	if err != nil {
		return err
	}
	if _, err := g.command(ctx, a, cmdDeleteAll); err != nil {
		return fmt.Errorf("device: delete inbox: %w", err)
	}
	return nil
}

// Close closes the serial port. The AT layer then reports closed,
// which raises EventClosed.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.port == nil {
		return nil
	}
	err := g.port.Close()
	g.port = nil
	g.modem = nil
	return err
}

func (g *Gateway) current() (*at.AT, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.modem == nil {
		return nil, ErrNotOpen
	}
	return g.modem, nil
}

func (g *Gateway) command(ctx context.Context, a *at.AT, cmd string) ([]string, error) {
	timeout, err := g.timeout(ctx)
	if err != nil {
		return nil, err
	}
	return a.Command(cmd, at.WithTimeout(timeout))
}

// timeout clamps the configured command timeout to the context deadline.
func (g *Gateway) timeout(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	t := g.cfg.Timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < t {
			t = left
		}
	}
	if t <= 0 {
		return 0, context.DeadlineExceeded
	}
	return t, nil
}

// watch waits for the AT layer to close (hardware gone, port closed) and
// forgets that modem so the next Open starts fresh.
func (g *Gateway) watch(a *at.AT) {
	<-a.Closed()

	g.mu.Lock()
	if g.modem == a {
		if g.port != nil {
			_ = g.port.Close()
		}
		g.port = nil
		g.modem = nil
	}
	g.mu.Unlock()

	g.emit(EventClosed)
}

func (g *Gateway) onNewMessage([]string) {
	g.emit(EventNewMessage)
}

func (g *Gateway) emit(kind EventKind) {
	select {
	case g.events <- Event{Kind: kind, At: time.Now()}:
	default:
		g.log.Warn(context.Background(), "Device event dropped", logging.String("event", kind.String()))
	}
}
