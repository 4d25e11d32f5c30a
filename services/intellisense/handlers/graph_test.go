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
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/Intellisense/services/intellisense/graph"
)

// =============================================================================
// HandleGraphQuery Tests
// =============================================================================

func TestHandleGraphQuery_MissingNode(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"empty object", map[string]any{}},
		{"empty string", map[string]any{"node": ""}},
		{"empty body", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := newTestMetrics(t)
			router := createTestRouter(http.MethodPost, "/graph/query", HandleGraphQuery(graph.NewStore(), metrics))

			w := performRequest(router, http.MethodPost, "/graph/query", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"error": "'node' is required"}`, w.Body.String())
			assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ValidationErrorsTotal.WithLabelValues("graph_query", "node")))
		})
	}
}

func TestHandleGraphQuery_UnknownNode(t *testing.T) {
	router := createTestRouter(http.MethodPost, "/graph/query", HandleGraphQuery(graph.NewStore(), nil))

	w := performRequest(router, http.MethodPost, "/graph/query", gin.H{"node": "ghost"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"exists": false}`, w.Body.String())
}

func TestHandleGraphQuery_ExistingNode(t *testing.T) {
	store := graph.NewStore()
	require.NoError(t, store.AddNode("a", graph.Attributes{"kind": "file"}))
	require.NoError(t, store.AddEdge("a", "c", nil))
	require.NoError(t, store.AddEdge("b", "a", nil))
	router := createTestRouter(http.MethodPost, "/graph/query", HandleGraphQuery(store, nil))

	w := performRequest(router, http.MethodPost, "/graph/query", gin.H{"node": "a"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"exists": true,
		"data": {"kind": "file"},
		"edges": [["a", "b"], ["a", "c"]]
	}`, w.Body.String())
}

// =============================================================================
// HandleAddNode / HandleAddEdge Tests
// =============================================================================

func TestHandleAddNode_Success(t *testing.T) {
	store := graph.NewStore()
	metrics := newTestMetrics(t)
	router := createTestRouter(http.MethodPost, "/graph/nodes", HandleAddNode(store, metrics))

	w := performRequest(router, http.MethodPost, "/graph/nodes",
		gin.H{"id": "a", "attributes": gin.H{"lang": "go"}})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"status": "created", "id": "a"}`, w.Body.String())

	result := store.QueryNode("a")
	assert.True(t, result.Exists)
	assert.Equal(t, "go", result.Data["lang"])
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GraphNodes))
}

func TestHandleAddNode_Twice(t *testing.T) {
	store := graph.NewStore()
	router := createTestRouter(http.MethodPost, "/graph/nodes", HandleAddNode(store, nil))

	performRequest(router, http.MethodPost, "/graph/nodes", gin.H{"id": "a"})
	performRequest(router, http.MethodPost, "/graph/nodes", gin.H{"id": "a"})

	assert.Equal(t, 1, store.Stats().Nodes)
}

func TestHandleAddNode_MissingID(t *testing.T) {
	router := createTestRouter(http.MethodPost, "/graph/nodes", HandleAddNode(graph.NewStore(), nil))

	w := performRequest(router, http.MethodPost, "/graph/nodes", gin.H{"attributes": gin.H{}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error": "'id' is required"}`, w.Body.String())
}

func TestHandleAddEdge_Success(t *testing.T) {
	store := graph.NewStore()
	metrics := newTestMetrics(t)
	router := createTestRouter(http.MethodPost, "/graph/edges", HandleAddEdge(store, metrics))

	w := performRequest(router, http.MethodPost, "/graph/edges",
		gin.H{"source": "s", "target": "t", "attributes": gin.H{"weight": 2}})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"status": "created", "source": "s", "target": "t"}`, w.Body.String())

	result := store.QueryNode("s")
	assert.Equal(t, [][2]string{{"s", "t"}}, result.Edges)
	assert.True(t, store.QueryNode("t").Exists)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.GraphNodes))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GraphEdges))
}

func TestHandleAddEdge_MissingEndpoint(t *testing.T) {
	tests := []struct {
		name string
		body gin.H
		want string
	}{
		{"no source", gin.H{"target": "t"}, "'source' is required"},
		{"no target", gin.H{"source": "s"}, "'target' is required"},
		{"neither", gin.H{}, "'source' is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := graph.NewStore()
			router := createTestRouter(http.MethodPost, "/graph/edges", HandleAddEdge(store, nil))

			w := performRequest(router, http.MethodPost, "/graph/edges", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.want, decodeBody(t, w)["error"])
			assert.Zero(t, store.Stats().Nodes)
		})
	}
}

// =============================================================================
// HandleGraphAll Tests
// =============================================================================

func TestHandleGraphAll(t *testing.T) {
	store := graph.NewStore()
	require.NoError(t, store.AddNode("a", nil))
	require.NoError(t, store.AddNode("b", nil))
	require.NoError(t, store.AddEdge("a", "b", nil))
	router := createTestRouter(http.MethodGet, "/graph/all", HandleGraphAll(store, nil))

	w := performRequest(router, http.MethodGet, "/graph/all", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)

	nodes, ok := body["nodes"].([]any)
	require.True(t, ok, "nodes should be a list")
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.(map[string]any)["id"].(string))
	}
	assert.Contains(t, ids, "a")

	links, ok := body["links"].([]any)
	require.True(t, ok, "links should be a list")
	assert.Len(t, links, 1)
	assert.Equal(t, false, body["directed"])
}

func TestHandleGraphAll_Empty(t *testing.T) {
	router := createTestRouter(http.MethodGet, "/graph/all", HandleGraphAll(graph.NewStore(), nil))

	w := performRequest(router, http.MethodGet, "/graph/all", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"directed": false, "multigraph": false, "graph": {}, "nodes": [], "links": []}`, w.Body.String())
}

// =============================================================================
// HandleHealth Tests
// =============================================================================

func TestHandleHealth(t *testing.T) {
	store := graph.NewStore()
	require.NoError(t, store.AddEdge("a", "b", nil))
	router := createTestRouter(http.MethodGet, "/health", HandleHealth(store))

	w := performRequest(router, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "healthy", "nodes": 2, "edges": 1}`, w.Body.String())
}
