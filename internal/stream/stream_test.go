package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/domain"
	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/simulation"
)

type countingSource struct{ n atomic.Uint64 }

func (s *countingSource) Snapshot() simulation.Snapshot {
	return simulation.Snapshot{Tick: s.n.Add(1), GridStatus: domain.GridStable}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestInitThenUpdates(t *testing.T) {
	s := New(&countingSource{}, 20*time.Millisecond, true, zerolog.Nop())
	srv := httptest.NewServer(s)
	defer srv.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn := dial(t, srv)
	first := readFrame(t, conn)
	assert.Equal(t, "init", first.Type)
	assert.Equal(t, domain.GridStable, first.Data.GridStatus)

	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	go s.Run(ctx)

	update := readFrame(t, conn)
	assert.Equal(t, "update", update.Type)
	assert.Greater(t, update.Data.Tick, first.Data.Tick)
}

func TestRunWithoutAutoRefreshReturns(t *testing.T) {
	s := New(&countingSource{}, time.Millisecond, false, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestClientRemovedOnClose(t *testing.T) {
	s := New(&countingSource{}, time.Hour, true, zerolog.Nop())
	srv := httptest.NewServer(s)
	defer srv.Close()

	conn := dial(t, srv)
	readFrame(t, conn)
	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool { return s.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSnapshotAndHealth(t *testing.T) {
	s := New(&countingSource{}, time.Second, true, zerolog.Nop())
	srv := httptest.NewServer(s)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/snapshot")
	require.NoError(t, err)
	defer resp.Body.Close()
	var snap simulation.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, uint64(1), snap.Tick)

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}
