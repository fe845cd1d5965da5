// internal/writer/publisher.go
package writer

import (
	"context"
	"time"

	"github.com/tamzrod/gsmlink/internal/link"
	"github.com/tamzrod/gsmlink/internal/logging"
	"github.com/tamzrod/gsmlink/internal/status"
)

const defaultRetry = 10 * time.Second

// Publisher mirrors link state into status memory from its own goroutine.
// Only the newest state is kept; intermediate states may be skipped.
type Publisher struct {
	w      StatusWriter
	log    logging.Logger
	retry  time.Duration
	latest chan status.Snapshot
}

func NewPublisher(w StatusWriter, log logging.Logger) *Publisher {
	if log == nil {
		log = logging.Noop()
	}
	return &Publisher{
		w:      w,
		log:    log,
		retry:  defaultRetry,
		latest: make(chan status.Snapshot, 1),
	}
}

// ObserveState never blocks; a pending older snapshot is replaced.
func (p *Publisher) ObserveState(s link.State) {
	snap := status.FromState(s)
	select {
	case <-p.latest:
	default:
	}
	select {
	case p.latest <- snap:
	default:
	}
}

// Run writes snapshots until ctx is done. A failed write is retried on a
// timer until it succeeds or a newer snapshot replaces it.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.retry)
	defer ticker.Stop()

	var pending *status.Snapshot
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-p.latest:
			pending = &s
		case <-ticker.C:
		}

		if pending == nil {
			continue
		}
		if err := p.w.WriteStatus(*pending); err != nil {
			p.log.Error(ctx, "Status memory write failed", logging.Err(err))
			continue
		}
		pending = nil
	}
}
