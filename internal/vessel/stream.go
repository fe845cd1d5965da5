// internal/vessel/stream.go
package vessel

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"

	"github.com/tamzrod/gsmlink/internal/logging"
)

// DefaultURL is a local Signal K server with no implicit subscription.
const DefaultURL = "ws://localhost:3000/signalk/v1/stream?subscribe=none"

type subscription struct {
	Path   string `json:"path"`
	Period int    `json:"period,omitempty"`
}

type subscribeMsg struct {
	Context     string         `json:"context"`
	Subscribe   []subscription `json:"subscribe,omitempty"`
	Unsubscribe []subscription `json:"unsubscribe,omitempty"`
}

// selfAll is the vessels.self / every path / 10s subscription.
var selfAll = subscribeMsg{
	Context:   "vessels.self",
	Subscribe: []subscription{{Path: "*", Period: 10000}},
}

var unsubscribeAll = subscribeMsg{
	Context:     "*",
	Unsubscribe: []subscription{{Path: "*"}},
}

// Stream feeds a Store from the Signal K WebSocket delta stream.
type Stream struct {
	url    string
	store  *Store
	log    logging.Logger
	dialer *websocket.Dialer
	retry  backoff.Backoff
}

func NewStream(url string, store *Store, log logging.Logger) *Stream {
	if log == nil {
		log = logging.Noop()
	}
	return &Stream{
		url:    url,
		store:  store,
		log:    log.With(logging.String("stream", url)),
		dialer: websocket.DefaultDialer,
		retry:  backoff.Backoff{Min: time.Second, Max: 5 * time.Minute, Factor: 2, Jitter: true},
	}
}

// Run keeps the subscription alive until ctx is done, then unsubscribes.
func (s *Stream) Run(ctx context.Context) {
	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return
		}

		wait := s.retry.Duration()
		s.log.Error(ctx, "Signal K stream lost", logging.Err(err), logging.String("retry_in", wait.String()))

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (s *Stream) session(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("vessel: dial: %w", err)
	}
	defer conn.Close()

	if err := s.send(conn, selfAll); err != nil {
		return fmt.Errorf("vessel: subscribe: %w", err)
	}
	s.log.Info(ctx, "Subscribed to vessel data")
	s.retry.Reset()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.send(conn, unsubscribeAll)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("vessel: read: %w", err)
		}

		var d Delta
		if err := sonic.Unmarshal(data, &d); err != nil {
			s.log.Debug(ctx, "Ignoring non-delta message", logging.Err(err))
			continue
		}
		if len(d.Updates) == 0 {
			// hello and other control messages
			continue
		}
		s.store.Apply(d)
	}
}

func (s *Stream) send(conn *websocket.Conn, msg subscribeMsg) error {
	b, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
