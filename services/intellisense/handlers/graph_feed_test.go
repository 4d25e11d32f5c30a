// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/Intellisense/services/intellisense/graph"
	"github.com/AleutianAI/Intellisense/services/intellisense/observability"
)

// startFeedServer serves HandleGraphFeed on a real listener and dials it.
func startFeedServer(t *testing.T, store *graph.Store, metrics *observability.Metrics, opts FeedOptions) *websocket.Conn {
	t.Helper()

	router := createTestRouter(http.MethodGet, "/graph/ws", HandleGraphFeed(store, metrics, opts))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/graph/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func TestHandleGraphFeed_SnapshotThenEvents(t *testing.T) {
	store := graph.NewStore()
	require.NoError(t, store.AddNode("a", graph.Attributes{"kind": "root"}))

	conn := startFeedServer(t, store, nil, FeedOptions{})

	var snap struct {
		Type string `json:"type"`
		Data struct {
			Nodes []map[string]any `json:"nodes"`
			Links []map[string]any `json:"links"`
		} `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, MessageTypeSnapshot, snap.Type)
	require.Len(t, snap.Data.Nodes, 1)
	assert.Equal(t, "a", snap.Data.Nodes[0]["id"])
	assert.Equal(t, "root", snap.Data.Nodes[0]["kind"])
	assert.Empty(t, snap.Data.Links)

	// The subscription is registered before the snapshot is written.
	require.NoError(t, store.AddEdge("a", "b", graph.Attributes{"w": 1}))

	var first map[string]any
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, string(graph.EventNodeAdded), first["type"])
	assert.Equal(t, "b", first["node"].(map[string]any)["id"])

	var second map[string]any
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, string(graph.EventEdgeAdded), second["type"])
	link := second["link"].(map[string]any)
	assert.Equal(t, "a", link["source"])
	assert.Equal(t, "b", link["target"])
}

func TestHandleGraphFeed_ClientDisconnect(t *testing.T) {
	store := graph.NewStore()
	metrics := newTestMetrics(t)

	conn := startFeedServer(t, store, metrics, FeedOptions{Buffer: 4})

	var snap SnapshotMessage
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, 1, store.Subscribers())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FeedSubscribers))

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		return store.Subscribers() == 0 && testutil.ToFloat64(metrics.FeedSubscribers) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestHandleGraphFeed_ShutdownClosesFeed(t *testing.T) {
	store := graph.NewStore()
	done := make(chan struct{})

	conn := startFeedServer(t, store, nil, FeedOptions{Done: done})

	var snap SnapshotMessage
	require.NoError(t, conn.ReadJSON(&snap))

	close(done)

	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	assert.Eventually(t, func() bool { return store.Subscribers() == 0 },
		5*time.Second, 10*time.Millisecond)
}

func TestHandleGraphFeed_PlainHTTPRejected(t *testing.T) {
	router := createTestRouter(http.MethodGet, "/graph/ws", HandleGraphFeed(graph.NewStore(), nil, FeedOptions{}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/graph/ws", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
