package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/offsetwatch/internal/notify"
	"github.com/hupe1980/offsetwatch/internal/settings"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixedResolver struct {
	path string
	err  error
}

func (r fixedResolver) Resolve() (string, error) { return r.path, r.err }

func writeSettings(t *testing.T, content string) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), "system-options.json")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))

	return p
}

func newTestServer(t *testing.T, resolver PathResolver, hub *Hub, origins ...string) *httptest.Server {
	t.Helper()

	s := New(Options{
		Resolver:       resolver,
		Reader:         settings.NewReader(nil),
		Hub:            hub,
		Watching:       func() bool { return true },
		AllowedOrigins: origins,
		Logger:         discardLogger(),
	})

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	return ts
}

func getJSON(t *testing.T, url string, into any) int {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "offsetwatch/dev", resp.Header.Get("Server"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))

	return resp.StatusCode
}

// ---------------------------------------------------------------------------
// GET /offset
// ---------------------------------------------------------------------------

func TestOffset_Success(t *testing.T) {
	p := writeSettings(t, `{"rhythmTrackerPositionOffset": 0.42}`)
	ts := newTestServer(t, fixedResolver{path: p}, nil)

	var body offsetResponse
	status := getJSON(t, ts.URL+"/offset", &body)

	assert.Equal(t, http.StatusOK, status)
	require.NotNil(t, body.Offset)
	assert.Equal(t, 0.42, *body.Offset)
	assert.Equal(t, p, body.Path)
	assert.Empty(t, body.Error)
}

func TestOffset_Errors(t *testing.T) {
	tests := []struct {
		name     string
		resolver PathResolver
		status   int
		contains string
	}{
		{
			name:     "config path",
			resolver: fixedResolver{err: fmt.Errorf("%w: APPDATA is not set", settings.ErrConfigPath)},
			status:   http.StatusServiceUnavailable,
			contains: "APPDATA",
		},
		{
			name:     "not found",
			resolver: fixedResolver{path: "/nonexistent/system-options.json"},
			status:   http.StatusNotFound,
			contains: "could not find settings file",
		},
		{
			name:     "malformed",
			resolver: fixedResolver{path: writeSettings(t, `{oops`)},
			status:   http.StatusUnprocessableEntity,
			contains: "failed to parse settings file",
		},
		{
			name:     "field missing",
			resolver: fixedResolver{path: writeSettings(t, `{}`)},
			status:   http.StatusUnprocessableEntity,
			contains: settings.OffsetField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.resolver, nil)

			var body offsetResponse
			status := getJSON(t, ts.URL+"/offset", &body)

			assert.Equal(t, tt.status, status)
			assert.Nil(t, body.Offset)
			assert.Contains(t, body.Error, tt.contains)
		})
	}
}

func TestStatusFor_Default(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("disk on fire")))
	assert.Equal(t, http.StatusInternalServerError, statusFor(&settings.IOError{Err: errors.New("eio")}))
}

func TestOffset_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, fixedResolver{}, nil)

	resp, err := http.Post(ts.URL+"/offset", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

// ---------------------------------------------------------------------------
// GET /healthz
// ---------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	ts := newTestServer(t, fixedResolver{}, nil)

	var body healthResponse
	status := getJSON(t, ts.URL+"/healthz", &body)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.Watching)
	assert.Equal(t, 0, body.Clients)
	assert.Equal(t, "dev", body.Version)
}

// ---------------------------------------------------------------------------
// GET /events
// ---------------------------------------------------------------------------

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
}

func TestEvents_StreamsPublishedEvents(t *testing.T) {
	hub := NewHub(4, discardLogger())
	ts := newTestServer(t, fixedResolver{}, hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub := notify.NewPublisher(4, discardLogger())
	go hub.Run(ctx, pub.Events())

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	pub.Publish(notify.Success(0.42))
	pub.Publish(notify.Failure("failed to parse settings file: bad"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var first, second map[string]any
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))

	assert.Equal(t, notify.EventConfigChanged, first["event"])
	assert.Equal(t, 0.42, first["offset"])
	assert.Equal(t, 1.0, first["seq"])

	assert.Equal(t, "failed to parse settings file: bad", second["error"])
	assert.NotContains(t, second, "offset")
}

func TestEvents_ClientDisconnectUnsubscribes(t *testing.T) {
	hub := NewHub(4, discardLogger())
	ts := newTestServer(t, fixedResolver{}, hub)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestEvents_HubShutdownClosesClients(t *testing.T) {
	hub := NewHub(4, discardLogger())
	ts := newTestServer(t, fixedResolver{}, hub)

	ctx, cancel := context.WithCancel(context.Background())
	source := make(chan notify.Event)

	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx, source)
		close(hubDone)
	}()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	<-hubDone

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestEvents_OriginRejected(t *testing.T) {
	ts := newTestServer(t, fixedResolver{}, nil, "tauri://localhost")

	header := http.Header{}
	header.Set("Origin", "http://evil.example")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestEvents_OriginAllowed(t *testing.T) {
	ts := newTestServer(t, fixedResolver{}, nil, "tauri://localhost")

	header := http.Header{}
	header.Set("Origin", "tauri://localhost")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
	require.NoError(t, err)
	conn.Close()
}

// ---------------------------------------------------------------------------
// Hub
// ---------------------------------------------------------------------------

func TestHub_SlowClientDropsEvents(t *testing.T) {
	hub := NewHub(1, discardLogger())
	c := hub.subscribe()

	hub.broadcast(notify.Success(1))
	hub.broadcast(notify.Success(2))

	ev := <-c.events
	v, _ := ev.Offset()
	assert.Equal(t, 1.0, v)

	select {
	case <-c.events:
		t.Fatal("second event should have been dropped")
	default:
	}
}

func TestHub_UnsubscribeTwice(t *testing.T) {
	hub := NewHub(0, nil)
	c := hub.subscribe()

	hub.unsubscribe(c)
	hub.unsubscribe(c)

	_, ok := <-c.events
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Clients())
}

func TestHub_RunStopsWhenSourceCloses(t *testing.T) {
	hub := NewHub(1, discardLogger())
	c := hub.subscribe()

	source := make(chan notify.Event)
	close(source)

	hub.Run(context.Background(), source)

	_, ok := <-c.events
	assert.False(t, ok)
}

// ---------------------------------------------------------------------------
// Serve
// ---------------------------------------------------------------------------

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(Options{Resolver: fixedResolver{}, Reader: settings.NewReader(nil), Logger: discardLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRun_InvalidAddr(t *testing.T) {
	s := New(Options{Addr: "256.0.0.1:99999", Logger: discardLogger()})

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on")
}
