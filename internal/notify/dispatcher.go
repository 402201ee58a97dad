// Package notify fires result notifications off the request path.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/epitome/examportal/internal/metrics"
	"github.com/epitome/examportal/internal/models"
)

const DefaultTimeout = 30 * time.Second

var ErrShutdownTimeout = errors.New("notifications still running at shutdown")

// Sender delivers one finalized result over a single channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, r models.ExamResult) error
}

// Dispatcher runs every sender in its own goroutine. Failures are logged and
// counted, never returned, and nothing is retried.
type Dispatcher struct {
	senders []Sender
	timeout time.Duration

	base   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(timeout time.Duration, senders ...Sender) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	base, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		senders: senders,
		timeout: timeout,
		base:    base,
		cancel:  cancel,
	}
}

// Notify returns immediately. The result is copied so the caller may reuse it.
func (d *Dispatcher) Notify(r models.ExamResult) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		logger.Error.Printf("Dropping notification for %s: dispatcher is shut down", r.Username)
		return
	}

	for _, s := range d.senders {
		d.wg.Add(1)
		go d.deliver(s, r)
	}
}

func (d *Dispatcher) deliver(s Sender, r models.ExamResult) {
	defer d.wg.Done()
	defer func() {
		if p := recover(); p != nil {
			metrics.NotificationsTotal.WithLabelValues(s.Name(), "panic").Inc()
			logger.Error.Printf("Notification sender %s panicked for %s: %v", s.Name(), r.Username, p)
		}
	}()

	ctx, cancel := context.WithTimeout(d.base, d.timeout)
	defer cancel()

	start := time.Now()
	if err := s.Send(ctx, r); err != nil {
		metrics.NotificationsTotal.WithLabelValues(s.Name(), "error").Inc()
		logger.Error.Printf("Failed to send %s notification for %s: %v", s.Name(), r.Username, err)
		return
	}
	metrics.NotificationsTotal.WithLabelValues(s.Name(), "sent").Inc()
	logger.Debug.Printf("Sent %s notification for %s in %s", s.Name(), r.Username, time.Since(start))
}

// Shutdown stops accepting notifications and waits for running ones until ctx
// is done. Whatever is still running afterwards has its context cancelled.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	defer d.cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ErrShutdownTimeout
	}
}
