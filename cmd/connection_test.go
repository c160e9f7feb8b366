// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bridgeServer starts a websocket bridge that sends messages frames as soon
// as a client connects, then holds the socket open until the client leaves.
func bridgeServer(t *testing.T, messages int) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 0; i < messages; i++ {
			if err := conn.WriteMessage(websocket.TextMessage, []byte("R28:012345\r\n")); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketConnection_ReadTimeout(t *testing.T) {
	conn, err := OpenWebSocketConnection(bridgeServer(t, 1), "", "", false)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadTimeout(time.Second))
	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "R28:012345\r\n", string(buf[:n]))

	require.NoError(t, conn.SetReadTimeout(20*time.Millisecond))
	n, err = conn.Read(buf)
	assert.NoError(t, err, "a timed out read is not an error")
	assert.Zero(t, n)
}

func TestWebSocketConnection_CloseStopsPumpWithFullQueue(t *testing.T) {
	conn, err := OpenWebSocketConnection(bridgeServer(t, 200), "", "", false)
	require.NoError(t, err)
	ws := conn.(*WebSocketConnection)

	// Nobody reads: let the queue fill and the pump block on it.
	require.Eventually(t, func() bool { return len(ws.msgs) == cap(ws.msgs) },
		2*time.Second, 5*time.Millisecond)

	require.NoError(t, ws.Close())

	select {
	case <-ws.pumpExited:
	case <-time.After(2 * time.Second):
		t.Fatal("pump goroutine still running after Close")
	}

	assert.NoError(t, ws.Close(), "second Close is a no-op")
}
