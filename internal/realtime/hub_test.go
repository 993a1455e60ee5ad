package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialTestClient spins up a ws endpoint that registers every incoming
// connection with hub and returns the client side of one connection.
func dialTestClient(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.AddClient(conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBroadcastJSONDeliversToClient(t *testing.T) {
	hub := NewHub()
	conn := dialTestClient(t, hub)
	require.Equal(t, 1, hub.ClientCount())

	hub.BroadcastJSON(map[string]string{"symbol": "AAPL"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), "AAPL")
}

func TestBroadcastJSONConcurrent(t *testing.T) {
	hub := NewHub()
	conn := dialTestClient(t, hub)

	// Drain the client side so the server's queue keeps moving.
	var received int64
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			atomic.AddInt64(&received, 1)
		}
	}()

	// Overlapping quote applies broadcast from separate goroutines; the
	// per-client write loop must serialize them onto the connection.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				hub.BroadcastJSON(map[string]int{"tick": j})
			}
		}()
	}
	wg.Wait()

	conn.Close()
	<-done
	assert.Greater(t, atomic.LoadInt64(&received), int64(0))
}

func TestSendJSONTargetsOneClient(t *testing.T) {
	hub := NewHub()
	first := dialTestClient(t, hub)
	second := dialTestClient(t, hub)
	require.Equal(t, 2, hub.ClientCount())

	// SendJSON only knows server-side conns; fish them out of the hub.
	hub.mu.RLock()
	var serverConns []*websocket.Conn
	for conn := range hub.clients {
		serverConns = append(serverConns, conn)
	}
	hub.mu.RUnlock()
	require.Len(t, serverConns, 2)

	hub.SendJSON(serverConns[0], map[string]string{"hello": "board"})

	got := make(chan string, 2)
	for _, conn := range []*websocket.Conn{first, second} {
		go func(c *websocket.Conn) {
			c.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
			if _, msg, err := c.ReadMessage(); err == nil {
				got <- string(msg)
			}
		}(conn)
	}

	select {
	case msg := <-got:
		assert.Contains(t, msg, "board")
	case <-time.After(2 * time.Second):
		t.Fatal("initial payload never delivered")
	}
	// Exactly one client receives it.
	select {
	case msg := <-got:
		t.Fatalf("unexpected second delivery: %s", msg)
	case <-time.After(700 * time.Millisecond):
	}
}

func TestRemoveClientIsIdempotent(t *testing.T) {
	hub := NewHub()
	_ = dialTestClient(t, hub)

	hub.mu.RLock()
	var server *websocket.Conn
	for conn := range hub.clients {
		server = conn
	}
	hub.mu.RUnlock()
	require.NotNil(t, server)

	hub.RemoveClient(server)
	hub.RemoveClient(server)
	assert.Equal(t, 0, hub.ClientCount())

	// Broadcasting after removal must not panic or deliver.
	hub.BroadcastJSON(map[string]string{"symbol": "MSFT"})
	hub.SendJSON(server, map[string]string{"symbol": "MSFT"})
}
