package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketloop/event-stream-service/internal/bus"
	"github.com/ticketloop/event-stream-service/internal/domain/event"
	"github.com/ticketloop/event-stream-service/internal/service"
	"github.com/ticketloop/event-stream-service/internal/session"
)

type stubAuther struct {
	deny bool
}

func (s *stubAuther) Inspect(_ context.Context, token string) (*service.Identity, error) {
	if token == "" {
		return nil, service.ErrUnauthorized
	}
	return &service.Identity{Subject: "u1", Roles: []string{"admin"}}, nil
}

func (s *stubAuther) CanViewStream(*service.Identity, string, event.Filter) bool { return !s.deny }

func (s *stubAuther) CanManageSettings(*service.Identity) bool { return false }

func newStreamServer(t *testing.T, auther service.Auther) (*httptest.Server, bus.Bus) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := bus.NewMemoryBus(logger)
	t.Cleanup(func() { b.Close() })
	manager := session.NewManager(b, auther, logger, session.WithHeartbeatInterval(time.Hour))
	t.Cleanup(func() { manager.Shutdown() })
	h := NewHandler(logger, manager, auther, 20*time.Millisecond)

	r := chi.NewRouter()
	r.Get("/api/events/{scopeID}/stream", h.Stream)
	r.Get("/heartbeat", h.Heartbeat)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, b
}

func readFrame(t *testing.T, scanner *bufio.Scanner) map[string]any {
	t.Helper()
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var frame map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame))
		return frame
	}
	t.Fatal("stream ended before a frame arrived")
	return nil
}

func TestStreamDeliversEvents(t *testing.T) {
	srv, b := newStreamServer(t, &stubAuther{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events/evt-1/stream?token=tok", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// The subscription races the publish; wait until the session registered.
	waitForSubscribers(t, b, 1)

	b.Publish(ctx, event.New("evt-1", event.ChannelOrders, map[string]any{"order_id": "ord-9"}))

	frame := readFrame(t, bufio.NewScanner(resp.Body))
	assert.Equal(t, "event", frame["type"])
	assert.Equal(t, "evt-1", frame["scope_id"])
	assert.Equal(t, "orders", frame["channel"])
	payload, ok := frame["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ord-9", payload["order_id"])
}

func TestStreamChannelFilter(t *testing.T) {
	srv, b := newStreamServer(t, &stubAuther{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events/evt-1/stream?token=tok&channel=check-ins", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	waitForSubscribers(t, b, 1)
	b.Publish(ctx, event.New("evt-1", event.ChannelOrders, map[string]any{"order_id": "ord-9"}))
	b.Publish(ctx, event.New("evt-1", event.ChannelCheckIns, map[string]any{"ticket_id": "tkt-1"}))

	frame := readFrame(t, bufio.NewScanner(resp.Body))
	assert.Equal(t, "check-ins", frame["channel"])
}

func TestStreamRejectsAnonymous(t *testing.T) {
	srv, _ := newStreamServer(t, &stubAuther{})

	resp, err := http.Get(srv.URL + "/api/events/evt-1/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStreamRejectsForbiddenScope(t *testing.T) {
	srv, _ := newStreamServer(t, &stubAuther{deny: true})

	resp, err := http.Get(srv.URL + "/api/events/evt-1/stream?token=tok")
	require.NoError(t, err)
	defer resp.Body.Close()
	// A denied caller must see a status code, not a 200 stream that ends
	// immediately.
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.NotEqual(t, "text/event-stream", resp.Header.Get("Content-Type"))
}

func TestStreamRejectsBadChannel(t *testing.T) {
	srv, _ := newStreamServer(t, &stubAuther{})

	resp, err := http.Get(srv.URL + "/api/events/evt-1/stream?token=tok&channel=nonsense")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHeartbeatEndpoint(t *testing.T) {
	srv, _ := newStreamServer(t, &stubAuther{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/heartbeat", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	first := readFrame(t, scanner)
	assert.Equal(t, "heartbeat", first["type"])
	second := readFrame(t, scanner)
	assert.Equal(t, "heartbeat", second["type"])
}

func waitForSubscribers(t *testing.T, b bus.Bus, n int) {
	t.Helper()
	sp, ok := b.(bus.StatsProvider)
	require.True(t, ok)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sp.Stats().Subscriptions >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("never saw %d subscribers", n)
}
