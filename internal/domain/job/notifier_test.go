package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siqueira-campos/imoveis-jobs/internal/domain/model"
)

// fakeWaiter records which queue each wait targeted and either returns
// immediately, fails, or blocks until the context ends.
type fakeWaiter struct {
	calls chan model.Queue
	err   error
	block bool
}

func (w *fakeWaiter) WaitForNotification(ctx context.Context, queue model.Queue) error {
	select {
	case w.calls <- queue:
	default:
	}

	if w.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if w.err != nil {
		return w.err
	}
	return ctx.Err()
}

func recvWithin[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

func assertClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case _, ok := <-ch:
		assert.False(t, ok, "%s should be closed", what)
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s to close", what)
	}
}

func TestNewNotifierRequiresWaiter(t *testing.T) {
	notifier, err := NewNotifier(NotifierOptions{})
	require.ErrorIs(t, err, ErrWaiterRequired)
	assert.Nil(t, notifier)
}

func TestNotifier_SubscribeReceivesNotifications(t *testing.T) {
	waiter := &fakeWaiter{calls: make(chan model.Queue, 4)}
	notifier, err := NewNotifier(NotifierOptions{Waiter: waiter})
	require.NoError(t, err)
	defer notifier.StopAll()

	unsub, ch := notifier.Subscribe(model.QueueEmail)
	defer unsub()

	queue := recvWithin(t, waiter.calls, "the listener to start waiting")
	assert.Equal(t, model.QueueEmail, queue)

	recvWithin(t, ch, "a notification")
}

func TestNotifier_FansOutToEverySubscriber(t *testing.T) {
	waiter := &fakeWaiter{calls: make(chan model.Queue, 8)}
	notifier, err := NewNotifier(NotifierOptions{Waiter: waiter})
	require.NoError(t, err)
	defer notifier.StopAll()

	unsubA, chA := notifier.Subscribe(model.QueuePDF)
	defer unsubA()
	unsubB, chB := notifier.Subscribe(model.QueuePDF)
	defer unsubB()

	recvWithin(t, chA, "first subscriber's notification")
	recvWithin(t, chB, "second subscriber's notification")
}

func TestNotifier_UnsubscribeClosesChannel(t *testing.T) {
	waiter := &fakeWaiter{calls: make(chan model.Queue, 1)}
	notifier, err := NewNotifier(NotifierOptions{Waiter: waiter})
	require.NoError(t, err)
	defer notifier.StopAll()

	unsub, ch := notifier.Subscribe(model.QueuePDF)
	recvWithin(t, waiter.calls, "the listener to start waiting")

	unsub()
	assertClosed(t, ch, "subscriber channel")

	// A second call must be a no-op.
	unsub()
}

func TestNotifier_StopAllClosesChannels(t *testing.T) {
	waiter := &fakeWaiter{
		calls: make(chan model.Queue, 2),
		err:   errors.New("connection reset"),
	}
	notifier, err := NewNotifier(NotifierOptions{Waiter: waiter})
	require.NoError(t, err)

	unsubEmail, chEmail := notifier.Subscribe(model.QueueEmail)
	unsubPDF, chPDF := notifier.Subscribe(model.QueuePDF)

	recvWithin(t, waiter.calls, "the email listener")
	recvWithin(t, waiter.calls, "the pdf listener")

	notifier.StopAll()

	assertClosed(t, chEmail, "email channel")
	assertClosed(t, chPDF, "pdf channel")

	// Unsubscribing after StopAll must not panic on the closed channels.
	unsubEmail()
	unsubPDF()
}

func TestNotifier_PendingNotificationCoalesces(t *testing.T) {
	waiter := &fakeWaiter{calls: make(chan model.Queue, 16)}
	notifier, err := NewNotifier(NotifierOptions{Waiter: waiter})
	require.NoError(t, err)
	defer notifier.StopAll()

	unsub, ch := notifier.Subscribe(model.QueueEmail)
	defer unsub()

	// Let several wait cycles complete without draining the channel.
	for i := 0; i < 3; i++ {
		recvWithin(t, waiter.calls, "a wait cycle")
	}

	// Exactly one notification is pending regardless of how many broadcasts
	// happened while we weren't reading.
	recvWithin(t, ch, "the coalesced notification")
}
