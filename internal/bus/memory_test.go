package bus

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketloop/event-stream-service/internal/domain/event"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func recvOne(t *testing.T, sub *Subscription) event.Event {
	t.Helper()
	select {
	case ev := <-sub.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return event.Event{}
	}
}

func assertSilent(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event delivered: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBusMatchesScopeAndChannel(t *testing.T) {
	b := NewMemoryBus(testLogger())
	defer b.Close()

	sub, err := b.Subscribe("evt-1", event.FilterChannel(event.ChannelOrders))
	require.NoError(t, err)

	b.Publish(context.Background(), event.New("evt-1", event.ChannelOrders, map[string]any{"order_id": "o1"}))

	got := recvOne(t, sub)
	assert.Equal(t, "evt-1", got.ScopeID)
	assert.Equal(t, event.ChannelOrders, got.Channel)
	assert.Equal(t, "o1", got.Payload["order_id"])
}

func TestMemoryBusScopeIsolation(t *testing.T) {
	b := NewMemoryBus(testLogger())
	defer b.Close()

	subA, err := b.Subscribe("evt-a", event.FilterAll)
	require.NoError(t, err)
	subB, err := b.Subscribe("evt-b", event.FilterAll)
	require.NoError(t, err)

	b.Publish(context.Background(), event.New("evt-b", event.ChannelStats, nil))

	recvOne(t, subB)
	assertSilent(t, subA)
}

func TestMemoryBusChannelFilter(t *testing.T) {
	b := NewMemoryBus(testLogger())
	defer b.Close()

	orders, err := b.Subscribe("evt-1", event.FilterChannel(event.ChannelOrders))
	require.NoError(t, err)
	all, err := b.Subscribe("evt-1", event.FilterAll)
	require.NoError(t, err)

	ctx := context.Background()
	b.Publish(ctx, event.New("evt-1", event.ChannelAlerts, nil))
	b.Publish(ctx, event.New("evt-1", event.ChannelOrders, nil))

	// The filtered subscription sees only the orders event.
	got := recvOne(t, orders)
	assert.Equal(t, event.ChannelOrders, got.Channel)
	assertSilent(t, orders)

	// The unfiltered one sees both, in publish order.
	assert.Equal(t, event.ChannelAlerts, recvOne(t, all).Channel)
	assert.Equal(t, event.ChannelOrders, recvOne(t, all).Channel)
}

func TestMemoryBusNoBacklog(t *testing.T) {
	b := NewMemoryBus(testLogger())
	defer b.Close()

	b.Publish(context.Background(), event.New("evt-1", event.ChannelStats, nil))

	sub, err := b.Subscribe("evt-1", event.FilterAll)
	require.NoError(t, err)
	assertSilent(t, sub)
}

func TestMemoryBusOrdering(t *testing.T) {
	b := NewMemoryBus(testLogger())
	defer b.Close()

	sub, err := b.Subscribe("evt-1", event.FilterChannel(event.ChannelCheckIns))
	require.NoError(t, err)

	const n = 100
	ctx := context.Background()
	for i := 0; i < n; i++ {
		b.Publish(ctx, event.New("evt-1", event.ChannelCheckIns, map[string]any{"seq": i}))
	}

	for i := 0; i < n; i++ {
		got := recvOne(t, sub)
		require.Equal(t, i, got.Payload["seq"])
	}
}

func TestMemoryBusUnsubscribeIdempotent(t *testing.T) {
	b := NewMemoryBus(testLogger())
	defer b.Close()

	sub, err := b.Subscribe("evt-1", event.FilterAll)
	require.NoError(t, err)

	b.Unsubscribe(sub)
	b.Unsubscribe(sub) // second call is a no-op

	select {
	case <-sub.Done():
	default:
		t.Fatal("subscription not marked done")
	}

	b.Publish(context.Background(), event.New("evt-1", event.ChannelOrders, nil))
	assertSilent(t, sub)
}

func TestMemoryBusDropNewestOnSaturation(t *testing.T) {
	b := NewMemoryBus(testLogger(), WithBufferSize(2))
	defer b.Close()

	sub, err := b.Subscribe("evt-1", event.FilterAll)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		b.Publish(ctx, event.New("evt-1", event.ChannelStats, map[string]any{"seq": i}))
	}

	// The first two fill the buffer; the other three are shed for this
	// subscription only, newest first.
	assert.Equal(t, 0, recvOne(t, sub).Payload["seq"])
	assert.Equal(t, 1, recvOne(t, sub).Payload["seq"])
	assertSilent(t, sub)
	assert.Equal(t, uint64(3), sub.Dropped())
}

func TestMemoryBusSaturatedSinkDoesNotAffectPeers(t *testing.T) {
	b := NewMemoryBus(testLogger(), WithBufferSize(1))
	defer b.Close()

	stalled, err := b.Subscribe("evt-1", event.FilterAll)
	require.NoError(t, err)
	healthy, err := b.Subscribe("evt-1", event.FilterAll)
	require.NoError(t, err)

	ctx := context.Background()
	b.Publish(ctx, event.New("evt-1", event.ChannelStats, map[string]any{"seq": 0}))
	b.Publish(ctx, event.New("evt-1", event.ChannelStats, map[string]any{"seq": 1}))

	// healthy drains as it goes; stalled loses the second event.
	assert.Equal(t, 0, recvOne(t, healthy).Payload["seq"])
	assert.Equal(t, 1, recvOne(t, healthy).Payload["seq"])
	assert.Equal(t, 0, recvOne(t, stalled).Payload["seq"])
	assert.Equal(t, uint64(1), stalled.Dropped())
}

func TestMemoryBusSubscribeAfterClose(t *testing.T) {
	b := NewMemoryBus(testLogger())
	sub, err := b.Subscribe("evt-1", event.FilterAll)
	require.NoError(t, err)

	b.Close()

	select {
	case <-sub.Done():
	default:
		t.Fatal("close did not release subscription")
	}

	_, err = b.Subscribe("evt-1", event.FilterAll)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryBusSubscribeDuringClose(t *testing.T) {
	b := NewMemoryBus(testLogger())

	var (
		mu   sync.Mutex
		subs []*Subscription
	)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for {
				sub, err := b.Subscribe("evt-race", event.FilterAll)
				if err != nil {
					assert.ErrorIs(t, err, ErrClosed)
					return
				}
				mu.Lock()
				subs = append(subs, sub)
				mu.Unlock()
			}
		}()
	}
	close(start)
	time.Sleep(time.Millisecond)
	b.Close()
	wg.Wait()

	// Every subscription handed out, including any racing the shutdown
	// sweep, must end up released.
	for _, sub := range subs {
		select {
		case <-sub.Done():
		case <-time.After(time.Second):
			t.Fatal("subscription survived Close")
		}
	}
}

func TestMemoryBusStats(t *testing.T) {
	b := NewMemoryBus(testLogger())
	defer b.Close()

	s1, _ := b.Subscribe("evt-1", event.FilterAll)
	_, _ = b.Subscribe("evt-1", event.FilterChannel(event.ChannelOrders))
	_, _ = b.Subscribe("evt-2", event.FilterAll)

	stats := b.Stats()
	assert.Equal(t, 3, stats.Subscriptions)
	assert.Equal(t, 2, stats.PerScope["evt-1"])
	assert.Equal(t, 1, stats.PerScope["evt-2"])

	b.Unsubscribe(s1)
	stats = b.Stats()
	assert.Equal(t, 2, stats.Subscriptions)
}

// Publishers, subscribers and unsubscribers race on the same scope without
// corrupting the registry. Run with -race.
func TestMemoryBusConcurrentAccess(t *testing.T) {
	b := NewMemoryBus(testLogger(), WithBufferSize(16))
	defer b.Close()

	ctx := context.Background()
	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				b.Publish(ctx, event.New("evt-1", event.ChannelCheckIns, nil))
			}
		}()
	}

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				sub, err := b.Subscribe("evt-1", event.FilterAll)
				if err != nil {
					t.Error(err)
					return
				}
				// Drain a little before leaving.
				select {
				case <-sub.Events():
				default:
				}
				b.Unsubscribe(sub)
			}
		}()
	}

	wg.Wait()

	// A subscriber registered after the storm still gets deliveries.
	sub, err := b.Subscribe("evt-1", event.FilterAll)
	require.NoError(t, err)
	b.Publish(ctx, event.New("evt-1", event.ChannelCheckIns, map[string]any{"final": true}))
	got := recvOne(t, sub)
	assert.Equal(t, true, got.Payload["final"])
}
