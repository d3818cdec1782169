package notify

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitWithoutPersisterBroadcastsLive(t *testing.T) {
	m := NewManager(nil)

	ch, cancel, err := m.Subscribe(context.Background(), nil)
	require.NoError(t, err)
	defer cancel()

	ev := CommitEvent{RepositoryKey: "R1", Branch: "master", CommitKey: "c1", Time: time.Unix(0, 0)}
	require.NoError(t, m.Emit(context.Background(), ev))

	select {
	case frame := <-ch:
		var got CommitEvent
		require.NoError(t, json.Unmarshal(frame, &got))
		assert.Equal(t, "R1", got.RepositoryKey)
		assert.Equal(t, "c1", got.CommitKey)
		assert.Zero(t, got.Seq)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast frame")
	}
}

func TestSubscribeFanOutToMultipleSubscribers(t *testing.T) {
	m := NewManager(nil)

	ch1, cancel1, err := m.Subscribe(context.Background(), nil)
	require.NoError(t, err)
	defer cancel1()
	ch2, cancel2, err := m.Subscribe(context.Background(), nil)
	require.NoError(t, err)
	defer cancel2()

	require.NoError(t, m.Emit(context.Background(), CommitEvent{CommitKey: "c1"}))

	var wg sync.WaitGroup
	wg.Add(2)
	for _, ch := range []<-chan []byte{ch1, ch2} {
		go func(ch <-chan []byte) {
			defer wg.Done()
			select {
			case <-ch:
			case <-time.After(time.Second):
				t.Error("timed out waiting for fan-out frame")
			}
		}(ch)
	}
	wg.Wait()
}

func TestCancelStopsDelivery(t *testing.T) {
	m := NewManager(nil)

	ch, cancel, err := m.Subscribe(context.Background(), nil)
	require.NoError(t, err)
	cancel()

	require.NoError(t, m.Emit(context.Background(), CommitEvent{CommitKey: "c1"}))

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after cancel")
}

func TestShutdownClosesAllSubscribers(t *testing.T) {
	m := NewManager(nil)

	ch1, _, err := m.Subscribe(context.Background(), nil)
	require.NoError(t, err)
	ch2, _, err := m.Subscribe(context.Background(), nil)
	require.NoError(t, err)

	m.Shutdown()

	_, ok1 := <-ch1
	_, ok2 := <-ch2
	assert.False(t, ok1)
	assert.False(t, ok2)
}

func TestBroadcastDropsSlowSubscriber(t *testing.T) {
	m := NewManager(nil)

	ch, cancel, err := m.Subscribe(context.Background(), nil)
	require.NoError(t, err)
	defer cancel()

	for i := 0; i < 300; i++ {
		_ = m.Emit(context.Background(), CommitEvent{CommitKey: "flood"})
	}

	drained := 0
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
			drained++
		default:
			// Slow consumer never read; channel should have been
			// closed once its buffer filled rather than blocking Emit.
			return
		}
		if drained > 1000 {
			t.Fatal("unexpected unbounded delivery")
		}
	}
}
