package playground

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialMonitor(t *testing.T, ctx context.Context, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(url, "http"), nil)
	require.NoError(t, err)
	return conn
}

func TestMonitorStreamsHistoryAndRequests(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	journal := NewMemoryJournal(10)
	require.NoError(t, journal.Record(ctx, journalEntry(1)))

	monitor := NewMonitor(journal)
	srv := httptest.NewServer(monitor)
	defer srv.Close()

	conn := dialMonitor(t, ctx, srv.URL)
	defer conn.CloseNow()

	var history MonitorMessage
	require.NoError(t, wsjson.Read(ctx, conn, &history))
	assert.Equal(t, "history", history.Type)
	require.Len(t, history.Entries, 1)
	assert.Equal(t, "req-1", history.Entries[0].ID)

	// The client registers before the upgrade, so it is visible by now
	assert.Equal(t, 1, monitor.ClientCount())
	monitor.Publish(journalEntry(2))

	var msg MonitorMessage
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "request", msg.Type)
	require.NotNil(t, msg.Entry)
	assert.Equal(t, "/pets/2", msg.Entry.Path)

	monitor.Close()
	_, _, err := conn.Read(ctx)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
	assert.Equal(t, 0, monitor.ClientCount())
}

func TestMonitorRefusesAfterClose(t *testing.T) {
	monitor := NewMonitor(nil)
	monitor.Close()
	monitor.Close()
	monitor.Publish(journalEntry(1))

	rec := httptest.NewRecorder()
	monitor.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMonitorDropsWhenClientIsSlow(t *testing.T) {
	monitor := NewMonitor(nil)
	client := monitor.register()
	require.NotNil(t, client)

	for i := 0; i < monitorBufferSize+3; i++ {
		monitor.Publish(journalEntry(i))
	}
	assert.Len(t, client.send, monitorBufferSize)
	assert.Equal(t, 3, client.dropped)

	monitor.unregister(client)
	assert.Equal(t, 0, monitor.ClientCount())
}
