// Package playground streams served requests to WebSocket clients.
//
// This file implements the live monitor at /_specmock/ws. Each client first
// receives recent history from the journal, then one message per request.
// A client that cannot keep up loses messages; requests never wait on it.
package playground

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const (
	// monitorBufferSize is the number of messages queued per client before
	// new ones are dropped
	monitorBufferSize = 64
	// monitorHistorySize is the number of journal entries sent on connect
	monitorHistorySize = 20
	// monitorWriteTimeout bounds each write to a client
	monitorWriteTimeout = 5 * time.Second
)

// MonitorMessage is one message sent to monitor clients.
type MonitorMessage struct {
	Type    string         `json:"type"` // "history" or "request"
	Entry   *RequestEntry  `json:"entry,omitempty"`
	Entries []RequestEntry `json:"entries,omitempty"`
}

type monitorClient struct {
	send    chan MonitorMessage
	dropped int
}

// Monitor fans request entries out to connected WebSocket clients.
type Monitor struct {
	journal Journal
	mu      sync.Mutex
	clients map[*monitorClient]struct{}
	closed  bool
}

// NewMonitor creates a monitor. journal may be nil.
func NewMonitor(journal Journal) *Monitor {
	return &Monitor{
		journal: journal,
		clients: make(map[*monitorClient]struct{}),
	}
}

// Publish queues entry for every client without blocking.
func (m *Monitor) Publish(entry RequestEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	msg := MonitorMessage{Type: "request", Entry: &entry}
	for client := range m.clients {
		select {
		case client.send <- msg:
		default:
			client.dropped++
		}
	}
}

// ClientCount returns the number of connected clients.
func (m *Monitor) ClientCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// Close disconnects every client. Later connections are refused.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for client := range m.clients {
		close(client.send)
		delete(m.clients, client)
	}
}

func (m *Monitor) register() *monitorClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	client := &monitorClient{send: make(chan MonitorMessage, monitorBufferSize)}
	m.clients[client] = struct{}{}
	return client
}

func (m *Monitor) unregister(client *monitorClient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[client]; ok {
		close(client.send)
		delete(m.clients, client)
	}
	if client.dropped > 0 {
		log.Printf("Warning: monitor client fell behind and missed %d message(s)", client.dropped)
	}
}

// ServeHTTP upgrades to WebSocket and streams entries until either side
// closes.
func (m *Monitor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	client := m.register()
	if client == nil {
		WriteError(w, http.StatusServiceUnavailable, "Monitor is shutting down")
		return
	}
	defer m.unregister(client)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Printf("Warning: monitor websocket accept: %v", err)
		return
	}
	defer conn.CloseNow()

	// The monitor never reads; CloseRead handles control frames and cancels
	// ctx when the client goes away.
	ctx := conn.CloseRead(r.Context())

	if m.journal != nil {
		entries, err := m.journal.List(ctx, monitorHistorySize)
		if err != nil {
			log.Printf("Warning: monitor history: %v", err)
		} else if err := m.write(ctx, conn, MonitorMessage{Type: "history", Entries: entries}); err != nil {
			return
		}
	}

	for {
		select {
		case msg, ok := <-client.send:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := m.write(ctx, conn, msg); err != nil {
				if HandlerDebug {
					log.Printf("DEBUG: monitor client write failed: %v", err)
				}
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) write(ctx context.Context, conn *websocket.Conn, msg MonitorMessage) error {
	ctx, cancel := context.WithTimeout(ctx, monitorWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}
