// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides the in-memory labeled graph behind the Intellisense API.
//
// # Description
//
// Store wraps an undirected lvlath core.Graph and adds attribute mappings
// for nodes and edges. lvlath owns membership and topology; Store owns the
// attributes and the single lock that makes every operation atomic.
//
// # Semantics
//
//   - AddNode is idempotent on id; attributes merge, later keys win.
//   - AddEdge creates missing endpoints as bare nodes. There are no parallel
//     edges: re-adding a pair, in either orientation, merges attributes.
//   - QueryNode never fails; absence is reported as {exists: false}.
//   - Self-loops are allowed.
//
// # Thread Safety
//
// Every operation holds one exclusive mutex for its full duration. Reads
// queue behind writes and vice versa. Returned values are copies and never
// alias store internals.
package graph

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/katalvlaran/lvlath/core"
)

// pairKey identifies an undirected edge independent of orientation.
type pairKey struct {
	a, b string
}

func pairOf(u, v string) pairKey {
	if v < u {
		u, v = v, u
	}
	return pairKey{a: u, b: v}
}

// Store is a mutation-synchronized labeled graph.
//
// Construct with NewStore. The zero value is not usable.
type Store struct {
	mu sync.Mutex

	g         *core.Graph
	nodeAttrs map[string]Attributes
	edgeAttrs map[pairKey]Attributes

	subscribers map[uint64]chan Event
	nextSubID   uint64
}

// NewStore creates an empty undirected graph store.
func NewStore() *Store {
	return &Store{
		g:           core.NewGraph(core.WithLoops()),
		nodeAttrs:   make(map[string]Attributes),
		edgeAttrs:   make(map[pairKey]Attributes),
		subscribers: make(map[uint64]chan Event),
	}
}

// AddNode inserts a node or merges attrs into an existing one.
//
// # Inputs
//
//   - id: Node identifier. Must not be empty.
//   - attrs: Attributes to merge. May be nil.
//
// # Outputs
//
//   - error: ErrEmptyNodeID if id is empty.
func (s *Store) AddNode(id string, attrs Attributes) error {
	if id == "" {
		return ErrEmptyNodeID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.g.AddVertex(id); err != nil {
		return fmt.Errorf("add node %q: %w", id, err)
	}
	merged := s.mergeNodeAttrs(id, attrs)

	s.publish(Event{Type: EventNodeAdded, Node: &Node{ID: id, Attributes: merged.clone()}})
	return nil
}

// AddEdge inserts an undirected edge between source and target.
//
// # Description
//
// Missing endpoints are created as bare nodes and announced with
// EventNodeAdded before the EventEdgeAdded. If the pair is already
// connected, attrs are merged into the existing edge instead.
//
// # Inputs
//
//   - source, target: Endpoint identifiers. Must not be empty. May be equal.
//   - attrs: Edge attributes to merge. May be nil.
//
// # Outputs
//
//   - error: ErrEmptyNodeID if either endpoint is empty.
func (s *Store) AddEdge(source, target string, attrs Attributes) error {
	if source == "" || target == "" {
		return ErrEmptyNodeID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var created []string
	for _, id := range []string{source, target} {
		if !s.g.HasVertex(id) && !slices.Contains(created, id) {
			created = append(created, id)
		}
	}

	if !s.g.HasEdge(source, target) {
		if _, err := s.g.AddEdge(source, target, 0); err != nil {
			return fmt.Errorf("add edge %q-%q: %w", source, target, err)
		}
	}

	for _, id := range created {
		merged := s.mergeNodeAttrs(id, nil)
		s.publish(Event{Type: EventNodeAdded, Node: &Node{ID: id, Attributes: merged.clone()}})
	}

	key := pairOf(source, target)
	existing, ok := s.edgeAttrs[key]
	if !ok {
		existing = make(Attributes, len(attrs))
		s.edgeAttrs[key] = existing
	}
	maps.Copy(existing, attrs)

	s.publish(Event{Type: EventEdgeAdded, Link: &Link{
		Source:     source,
		Target:     target,
		Attributes: existing.clone(),
	}})
	return nil
}

// QueryNode reports whether id exists and, if so, its attributes and edges.
//
// Each edge is returned as [id, neighbor], sorted by neighbor.
func (s *Store) QueryNode(id string) NodeResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.g.HasVertex(id) {
		return NodeResult{Exists: false}
	}

	incident, err := s.g.Neighbors(id)
	if err != nil {
		return NodeResult{Exists: false}
	}

	seen := make(map[string]struct{}, len(incident))
	neighbors := make([]string, 0, len(incident))
	for _, e := range incident {
		other := e.To
		if other == id {
			other = e.From
		}
		if _, dup := seen[other]; dup {
			continue
		}
		seen[other] = struct{}{}
		neighbors = append(neighbors, other)
	}
	sort.Strings(neighbors)

	edges := make([][2]string, 0, len(neighbors))
	for _, n := range neighbors {
		edges = append(edges, [2]string{id, n})
	}

	return NodeResult{
		Exists: true,
		Data:   s.nodeAttrs[id].clone(),
		Edges:  edges,
	}
}

// Snapshot serializes the whole graph in node-link form.
//
// Nodes are ordered by id; links follow lvlath's edge id order.
func (s *Store) Snapshot() NodeLinkData {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked()
}

// Stats returns the current node and edge counts.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{Nodes: s.g.VertexCount(), Edges: s.g.EdgeCount()}
}

func (s *Store) snapshotLocked() NodeLinkData {
	ids := s.g.Vertices()
	nodes := make([]Node, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, Node{ID: id, Attributes: s.nodeAttrs[id].clone()})
	}

	edges := s.g.Edges()
	links := make([]Link, 0, len(edges))
	for _, e := range edges {
		links = append(links, Link{
			Source:     e.From,
			Target:     e.To,
			Attributes: s.edgeAttrs[pairOf(e.From, e.To)].clone(),
		})
	}

	return NodeLinkData{
		Directed:   false,
		Multigraph: false,
		Graph:      Attributes{},
		Nodes:      nodes,
		Links:      links,
	}
}

func (s *Store) mergeNodeAttrs(id string, attrs Attributes) Attributes {
	existing, ok := s.nodeAttrs[id]
	if !ok {
		existing = make(Attributes, len(attrs))
		s.nodeAttrs[id] = existing
	}
	maps.Copy(existing, attrs)
	return existing
}
