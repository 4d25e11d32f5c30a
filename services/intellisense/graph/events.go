// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import "sync"

// EventType names a graph mutation.
type EventType string

const (
	// EventNodeAdded is emitted by AddNode.
	EventNodeAdded EventType = "node_added"

	// EventEdgeAdded is emitted by AddEdge.
	EventEdgeAdded EventType = "edge_added"
)

// Event describes one applied mutation. Exactly one of Node or Link is set.
//
// Node and Link carry the full attribute set after the merge, not only
// the keys supplied by the caller.
type Event struct {
	Type EventType `json:"type"`
	Node *Node     `json:"node,omitempty"`
	Link *Link     `json:"link,omitempty"`
}

// Subscribe registers a change listener.
//
// # Description
//
// The snapshot and the registration happen under the store lock, so the
// returned snapshot plus the events received on the channel describe every
// mutation exactly once.
//
// Delivery never blocks writers. If the channel buffer is full the event is
// dropped for that subscriber only.
//
// # Inputs
//
//   - buffer: Channel capacity. Values below 1 are raised to 1.
//
// # Outputs
//
//   - NodeLinkData: Graph state at registration time.
//   - <-chan Event: Mutations after the snapshot. Closed by cancel.
//   - func(): Unregisters and closes the channel. Safe to call more than once.
func (s *Store) Subscribe(buffer int) (NodeLinkData, <-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan Event, buffer)
	s.subscribers[id] = ch

	cancel := sync.OnceFunc(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
		close(ch)
	})

	return s.snapshotLocked(), ch, cancel
}

// Subscribers returns the number of registered listeners.
func (s *Store) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

// publish must be called with s.mu held.
func (s *Store) publish(ev Event) {
	for _, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}
