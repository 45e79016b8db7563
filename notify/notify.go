// Package notify delivers side effects of board mutations (invitation and
// assignment emails, in-app notifications) off the request path through a
// bounded worker pool.
package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ayzaz027-alt/trello-clone/domain"
	"github.com/ayzaz027-alt/trello-clone/storage"
)

// Sink receives the durable side effects the workers produce.
type Sink interface {
	EnqueueEmail(ctx context.Context, msg storage.EmailMessage) error
	InsertNotification(ctx context.Context, n domain.Notification) error
}

// Effect is one unit of delivery work. Either field may be nil.
type Effect struct {
	Email        *storage.EmailMessage
	Notification *domain.Notification
}

// Notifier fans Effects out to a fixed worker pool. Handoff is non-blocking
// with a short grace timer; when the buffer stays full the effect is dropped
// and counted, never stalling the HTTP handler that produced it.
type Notifier struct {
	sink Sink
	log  *log.Logger

	jobs           chan Effect
	workerWG       sync.WaitGroup
	deliverTimeout time.Duration
	handoffTimeout time.Duration

	closeOnce sync.Once
	dropped   atomic.Uint64
}

type Options struct {
	Workers        int
	Buffer         int
	DeliverTimeout time.Duration
	HandoffTimeout time.Duration
}

func (o *Options) withDefaults() {
	if o.Workers <= 0 {
		o.Workers = 8
	}
	if o.Buffer <= 0 {
		o.Buffer = 1024
	}
	if o.DeliverTimeout <= 0 {
		o.DeliverTimeout = 30 * time.Second
	}
}

func New(sink Sink, logger *log.Logger, opts Options) *Notifier {
	if sink == nil {
		panic("notify: sink is not initialized")
	}
	if logger == nil {
		panic("notify: logger is not initialized")
	}
	opts.withDefaults()

	n := &Notifier{
		sink:           sink,
		log:            logger,
		jobs:           make(chan Effect, opts.Buffer),
		deliverTimeout: opts.DeliverTimeout,
		handoffTimeout: opts.HandoffTimeout,
	}
	for i := 0; i < opts.Workers; i++ {
		n.workerWG.Add(1)
		go n.worker(i)
	}
	logger.Infof("notifier started, workers: %d, buffer: %d, timeout: %v, handoff: %v",
		opts.Workers, opts.Buffer, opts.DeliverTimeout, opts.HandoffTimeout)
	return n
}

// Dispatch hands an effect to the pool. It reports false when the effect was
// dropped: pool closed, or buffer full past the handoff grace.
func (n *Notifier) Dispatch(effect Effect) bool {
	if ok, closed := n.trySend(effect); closed {
		return false
	} else if ok {
		return true
	}

	if n.handoffTimeout <= 0 {
		n.dropEffect(effect)
		return false
	}

	timer := time.NewTimer(n.handoffTimeout)
	defer timer.Stop()
	ok, closed := n.sendWithTimer(effect, timer.C)
	if !ok && !closed {
		n.dropEffect(effect)
	}
	return ok
}

// trySend attempts a non-blocking handoff. A send on the closed channel
// panics; the recover turns that into a clean "pool closed" answer.
func (n *Notifier) trySend(effect Effect) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case n.jobs <- effect:
		return true, false
	default:
		return false, false
	}
}

func (n *Notifier) sendWithTimer(effect Effect, timer <-chan time.Time) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case n.jobs <- effect:
		return true, false
	case <-timer:
		return false, false
	}
}

func (n *Notifier) dropEffect(effect Effect) {
	total := n.dropped.Add(1)
	n.log.Warnf("notifier buffer full, effect dropped, email: %v, notification: %v, dropped total: %d",
		effect.Email != nil, effect.Notification != nil, total)
}

// Close stops accepting effects, drains the buffer and waits for workers.
func (n *Notifier) Close() {
	n.closeOnce.Do(func() {
		close(n.jobs)
	})
	n.workerWG.Wait()
}

func (n *Notifier) worker(id int) {
	defer n.workerWG.Done()
	for effect := range n.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), n.deliverTimeout)
		if effect.Notification != nil {
			if err := n.sink.InsertNotification(ctx, *effect.Notification); err != nil {
				n.log.Errorf("notification insert failed, err: %v, user: %s, type: %s, worker: %d",
					err, effect.Notification.UserID, effect.Notification.Type, id)
			}
		}
		if effect.Email != nil {
			if err := n.sink.EnqueueEmail(ctx, *effect.Email); err != nil {
				n.log.Errorf("email enqueue failed, err: %v, to: %s, template: %s, worker: %d",
					err, effect.Email.To, effect.Email.Template, id)
			}
		}
		cancel()
	}
}
