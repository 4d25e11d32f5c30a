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
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/Intellisense/services/intellisense/graph"
	"github.com/AleutianAI/Intellisense/services/intellisense/middleware"
	"github.com/AleutianAI/Intellisense/services/intellisense/observability"
)

// MessageTypeSnapshot is the type of the first message on the feed.
const MessageTypeSnapshot = "snapshot"

const (
	feedWriteTimeout  = 10 * time.Second
	defaultFeedBuffer = 64
)

var feedUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
}

// SnapshotMessage is the first message sent on a feed connection.
type SnapshotMessage struct {
	Type string             `json:"type"`
	Data graph.NodeLinkData `json:"data"`
}

// FeedOptions configures HandleGraphFeed.
type FeedOptions struct {
	// Buffer is the per-connection event buffer. Values below 1 use 64.
	// Events arriving while the buffer is full are dropped for that
	// connection.
	Buffer int

	// Done, when closed, ends every open feed. The HTTP server does not
	// track hijacked connections, so shutdown must signal them here.
	Done <-chan struct{}
}

// HandleGraphFeed streams graph changes over a websocket.
//
// # Description
//
// GET /graph/ws upgrades the connection, sends a SnapshotMessage with the
// current graph, then one graph.Event per mutation. The snapshot and the
// subscription are taken atomically, so no mutation is missed or repeated.
//
// Client messages are read and discarded; a read error ends the feed.
//
// # Limitations
//
//   - A slow client loses events rather than slowing writers.
//   - No ping/pong keepalive.
func HandleGraphFeed(store *graph.Store, metrics *observability.Metrics, opts FeedOptions) gin.HandlerFunc {
	if opts.Buffer < 1 {
		opts.Buffer = defaultFeedBuffer
	}

	return func(c *gin.Context) {
		logger := slog.Default().With("request_id", middleware.GetRequestID(c))

		ws, err := feedUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error.
			logger.Warn("graph feed upgrade failed", "error", err)
			metrics.RecordRequest(observability.EndpointGraphFeed, http.StatusBadRequest)
			return
		}
		defer ws.Close()
		metrics.RecordRequest(observability.EndpointGraphFeed, http.StatusSwitchingProtocols)

		snapshot, events, cancel := store.Subscribe(opts.Buffer)
		defer cancel()

		metrics.FeedOpened()
		defer metrics.FeedClosed()
		logger.Info("graph feed connected", "nodes", len(snapshot.Nodes), "links", len(snapshot.Links))

		if err := writeFeedJSON(ws, SnapshotMessage{Type: MessageTypeSnapshot, Data: snapshot}); err != nil {
			logger.Warn("graph feed snapshot write failed", "error", err)
			return
		}

		clientGone := make(chan struct{})
		go func() {
			defer close(clientGone)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-clientGone:
				logger.Info("graph feed disconnected")
				return

			case <-opts.Done:
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(time.Second))
				logger.Info("graph feed closed for shutdown")
				return

			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := writeFeedJSON(ws, ev); err != nil {
					logger.Warn("graph feed write failed", "error", err)
					return
				}
			}
		}
	}
}

func writeFeedJSON(ws *websocket.Conn, v any) error {
	if err := ws.SetWriteDeadline(time.Now().Add(feedWriteTimeout)); err != nil {
		return err
	}
	return ws.WriteJSON(v)
}
