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

import (
	"encoding/json"
	"errors"
	"maps"
)

// =============================================================================
// Errors
// =============================================================================

// ErrEmptyNodeID is returned when a node or edge endpoint identifier is empty.
var ErrEmptyNodeID = errors.New("graph: node id is empty")

// =============================================================================
// Attributes
// =============================================================================

// Attributes is the key/value mapping carried by nodes and edges.
//
// Values are expected to be JSON scalars. Nested values are accepted but
// only copied shallowly when snapshots are taken.
type Attributes map[string]any

// clone returns a non-nil shallow copy of a.
func (a Attributes) clone() Attributes {
	out := make(Attributes, len(a))
	maps.Copy(out, a)
	return out
}

// =============================================================================
// Query Results
// =============================================================================

// NodeResult is the outcome of QueryNode.
//
// # Description
//
// Absence is a normal outcome: an unknown node serializes as
// {"exists": false} with no other keys. A present node always carries
// "data" and "edges", even when both are empty.
//
// # Fields
//
//   - Exists: Whether the node is in the graph.
//   - Data: Snapshot of the node's attributes. Nil when Exists is false.
//   - Edges: Incident edges as [queried, neighbor] pairs. Nil when Exists is false.
type NodeResult struct {
	Exists bool        `json:"exists"`
	Data   Attributes  `json:"data,omitzero"`
	Edges  [][2]string `json:"edges,omitzero"`
}

// Stats reports graph size.
type Stats struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

// =============================================================================
// Node-Link Serialization
// =============================================================================

// Node is a node in node-link form: {"id": ..., <attributes>}.
type Node struct {
	ID         string
	Attributes Attributes
}

// MarshalJSON flattens the attributes next to "id". The id always wins
// over an attribute with the same key.
func (n Node) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(n.Attributes)+1)
	maps.Copy(out, n.Attributes)
	out["id"] = n.ID
	return json.Marshal(out)
}

// Link is an edge in node-link form: {"source": ..., "target": ..., <attributes>}.
type Link struct {
	Source     string
	Target     string
	Attributes Attributes
}

// MarshalJSON flattens the attributes next to "source" and "target".
func (l Link) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(l.Attributes)+2)
	maps.Copy(out, l.Attributes)
	out["source"] = l.Source
	out["target"] = l.Target
	return json.Marshal(out)
}

// NodeLinkData is the whole-graph serialization served by GET /graph/all.
//
// The shape matches the common node-link convention used by graph
// visualization frontends:
//
//	{"directed": false, "multigraph": false, "graph": {},
//	 "nodes": [{"id": "a"}], "links": [{"source": "a", "target": "b"}]}
type NodeLinkData struct {
	Directed   bool       `json:"directed"`
	Multigraph bool       `json:"multigraph"`
	Graph      Attributes `json:"graph"`
	Nodes      []Node     `json:"nodes"`
	Links      []Link     `json:"links"`
}
