package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Handler turns one event into replies. *Machine implements it.
type Handler interface {
	Handle(ctx context.Context, ev Event) ([]Reply, error)
}

// Sender delivers one reply through the transport.
type Sender interface {
	Send(ctx context.Context, r Reply) error
}

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("dispatcher closed")

const (
	defaultQueueSize     = 16
	defaultHandleTimeout = 30 * time.Second
)

// Dispatcher runs events for different users concurrently while keeping the
// events of one user strictly ordered. Each user with queued events gets a
// worker goroutine that exits once the queue drains.
type Dispatcher struct {
	h Handler
	s Sender

	// QueueSize bounds the per-user backlog; Dispatch blocks when it is full.
	QueueSize int
	// Timeout bounds one Handle call plus the sends of its replies, except
	// Bulk replies.
	Timeout time.Duration

	mu     sync.Mutex
	queues map[int64]*queue
	closed bool
	wg     sync.WaitGroup
}

type job struct {
	ctx context.Context
	ev  Event
}

type queue struct {
	ch      chan job
	wake    chan struct{}
	pending int
}

// NewDispatcher wires a handler to a sender.
func NewDispatcher(h Handler, s Sender) *Dispatcher {
	return &Dispatcher{
		h:         h,
		s:         s,
		QueueSize: defaultQueueSize,
		Timeout:   defaultHandleTimeout,
		queues:    make(map[int64]*queue),
	}
}

// Dispatch queues ev behind earlier events of the same user. Cancelling ctx
// only abandons the enqueue; a queued event is processed with ctx's values
// but not its cancellation.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	q, ok := d.queues[ev.UserID]
	if !ok {
		size := d.QueueSize
		if size <= 0 {
			size = defaultQueueSize
		}
		q = &queue{ch: make(chan job, size), wake: make(chan struct{}, 1)}
		d.queues[ev.UserID] = q
		d.wg.Add(1)
		go d.work(ev.UserID, q)
	}
	q.pending++
	d.mu.Unlock()

	select {
	case q.ch <- job{ctx: ctx, ev: ev}:
		return nil
	case <-ctx.Done():
		d.abandon(q)
		return ctx.Err()
	}
}

// Active returns the number of users with queued or running events.
func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}

// Close stops accepting events and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) work(userID int64, q *queue) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		if q.pending == 0 {
			if d.queues[userID] == q {
				delete(d.queues, userID)
			}
			d.mu.Unlock()
			return
		}
		d.mu.Unlock()

		select {
		case j := <-q.ch:
			d.process(j)
			d.mu.Lock()
			q.pending--
			d.mu.Unlock()
		case <-q.wake:
		}
	}
}

// abandon settles an event that never reached the queue.
func (d *Dispatcher) abandon(q *queue) {
	d.mu.Lock()
	q.pending--
	d.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) process(j job) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultHandleTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(j.ctx), timeout)
	defer cancel()

	lg := log.With().Int64("user_id", j.ev.UserID).Str("kind", j.ev.Kind()).Logger()
	defer func() {
		if r := recover(); r != nil {
			lg.Error().Interface("panic", r).Msg("handler panic; event dropped")
		}
	}()
	replies, err := d.h.Handle(ctx, j.ev)
	if err != nil {
		lg.Error().Err(err).Msg("handle event")
		return
	}
	// Bulk replies outlive the per-event deadline; the limiter paces them.
	bulk := context.WithoutCancel(j.ctx)
	for _, r := range replies {
		sctx := ctx
		if r.Bulk {
			sctx = bulk
		}
		if err := d.s.Send(sctx, r); err != nil {
			lg.Error().Err(err).Int64("chat_id", r.ChatID).Msg("send reply")
		}
	}
}
