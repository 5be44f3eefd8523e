package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/siqueira-campos/imoveis-jobs/internal/domain/model"
)

// ErrWaiterRequired indicates a notifier cannot be constructed without a waiter.
var ErrWaiterRequired = errors.New("notifier waiter is required")

// Waiter blocks until a job-availability notification arrives for a queue.
// The Postgres repository implements it over LISTEN/NOTIFY.
type Waiter interface {
	WaitForNotification(ctx context.Context, queue model.Queue) error
}

// Notifier manages subscriptions for job availability notifications.
type Notifier interface {
	Subscribe(queue model.Queue) (func(), <-chan struct{})
	StopAll()
}

// NotifierOptions configure the behaviour of the default notifier implementation.
type NotifierOptions struct {
	Waiter Waiter
	// WaitWindow bounds one blocking wait; the listener re-arms after it
	// elapses so a silently dropped connection cannot wedge a queue forever.
	WaitWindow time.Duration
	// Backoff is the pause after a failed wait before listening again.
	Backoff time.Duration
}

// DefaultNotifier runs one listener goroutine per queue that has at least one
// subscriber and fans notifications out to every subscriber of that queue.
// Subscriber channels have capacity one; a notification that arrives while one
// is already pending is coalesced, which is fine because subscribers treat a
// notification as "go look", not as a count.
type DefaultNotifier struct {
	waiter     Waiter
	waitWindow time.Duration
	backoff    time.Duration

	mu        sync.Mutex
	subs      map[model.Queue]map[chan struct{}]struct{}
	listeners map[model.Queue]context.CancelFunc
}

var _ Notifier = (*DefaultNotifier)(nil)

// NewNotifier constructs the default notifier implementation.
func NewNotifier(opts NotifierOptions) (*DefaultNotifier, error) {
	if opts.Waiter == nil {
		return nil, ErrWaiterRequired
	}

	n := &DefaultNotifier{
		waiter:     opts.Waiter,
		waitWindow: opts.WaitWindow,
		backoff:    opts.Backoff,
		subs:       make(map[model.Queue]map[chan struct{}]struct{}),
		listeners:  make(map[model.Queue]context.CancelFunc),
	}
	if n.waitWindow <= 0 {
		n.waitWindow = time.Minute
	}
	if n.backoff <= 0 {
		n.backoff = 250 * time.Millisecond
	}
	return n, nil
}

// Subscribe registers a new subscriber for the queue, starting the queue's
// listener if it is the first one. The returned function unsubscribes; the
// channel is closed on unsubscribe or StopAll.
func (n *DefaultNotifier) Subscribe(queue model.Queue) (func(), <-chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.listeners[queue]; !ok {
		ctx, cancel := context.WithCancel(context.Background())
		n.listeners[queue] = cancel
		go n.listenLoop(ctx, queue)
	}

	ch := make(chan struct{}, 1)
	if n.subs[queue] == nil {
		n.subs[queue] = make(map[chan struct{}]struct{})
	}
	n.subs[queue][ch] = struct{}{}

	return func() { n.unsubscribe(queue, ch) }, ch
}

// unsubscribe removes one subscriber and stops the queue's listener when the
// last subscriber leaves.
func (n *DefaultNotifier) unsubscribe(queue model.Queue, ch chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()

	subscribers := n.subs[queue]
	if _, ok := subscribers[ch]; !ok {
		return
	}
	delete(subscribers, ch)
	drainAndClose(ch)

	if len(subscribers) == 0 {
		if cancel, ok := n.listeners[queue]; ok {
			cancel()
			delete(n.listeners, queue)
		}
		delete(n.subs, queue)
	}
}

// StopAll cancels every listener and closes every subscriber channel.
func (n *DefaultNotifier) StopAll() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for queue, cancel := range n.listeners {
		cancel()
		delete(n.listeners, queue)
	}
	for queue, subscribers := range n.subs {
		for ch := range subscribers {
			drainAndClose(ch)
		}
		delete(n.subs, queue)
	}
}

func (n *DefaultNotifier) listenLoop(ctx context.Context, queue model.Queue) {
	for ctx.Err() == nil {
		waitCtx, cancel := context.WithTimeout(ctx, n.waitWindow)
		err := n.waiter.WaitForNotification(waitCtx, queue)
		cancel()

		// Broadcast even on error: a worker that wakes up and finds nothing
		// goes straight back to waiting, whereas a missed notification could
		// strand a job until the next wait-window expiry.
		n.broadcast(queue)

		if err != nil && ctx.Err() == nil {
			timer := time.NewTimer(n.backoff)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				return
			case <-timer.C:
			}
		}
	}
}

func (n *DefaultNotifier) broadcast(queue model.Queue) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for ch := range n.subs[queue] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// drainAndClose removes any buffered notification before closing so receivers
// observe the close immediately.
func drainAndClose(ch chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			close(ch)
			return
		}
	}
}
