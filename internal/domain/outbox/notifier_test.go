package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWaiter struct {
	calls chan struct{}
	err   error
}

func (s *stubWaiter) WaitForNotification(ctx context.Context) error {
	select {
	case s.calls <- struct{}{}:
	default:
	}
	if s.err != nil {
		return s.err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Millisecond):
		return nil
	}
}

func TestNewNotifierRequiresWaiter(t *testing.T) {
	notifier, err := NewNotifier(NotifierOptions{})
	require.ErrorIs(t, err, ErrWaiterRequired)
	assert.Nil(t, notifier)
}

func TestNotifier_SubscribeReceivesNotifications(t *testing.T) {
	waiter := &stubWaiter{calls: make(chan struct{}, 4)}
	notifier, err := NewNotifier(NotifierOptions{Waiter: waiter})
	require.NoError(t, err)

	unsub, ch := notifier.Subscribe()
	defer unsub()

	select {
	case <-ch:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected notification to be delivered")
	}
}

func TestNotifier_UnsubscribeClosesChannel(t *testing.T) {
	waiter := &stubWaiter{calls: make(chan struct{}, 1)}
	notifier, err := NewNotifier(NotifierOptions{Waiter: waiter})
	require.NoError(t, err)

	unsub, ch := notifier.Subscribe()
	select {
	case <-waiter.calls:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected waiter to be invoked")
	}

	unsub()
	unsub()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestNotifier_StopAllClosesChannels(t *testing.T) {
	waiter := &stubWaiter{calls: make(chan struct{}, 2), err: errors.New("boom")}
	notifier, err := NewNotifier(NotifierOptions{Waiter: waiter, Backoff: time.Millisecond})
	require.NoError(t, err)

	unsubA, chA := notifier.Subscribe()
	unsubB, chB := notifier.Subscribe()

	select {
	case <-waiter.calls:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected waiter to be invoked")
	}

	notifier.StopAll()

	for _, ch := range []<-chan struct{}{chA, chB} {
		require.Eventually(t, func() bool {
			select {
			case _, ok := <-ch:
				return !ok
			default:
				return false
			}
		}, time.Second, 5*time.Millisecond)
	}

	unsubA()
	unsubB()
}
