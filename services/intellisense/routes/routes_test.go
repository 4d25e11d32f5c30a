// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/Intellisense/services/intellisense/agent"
	"github.com/AleutianAI/Intellisense/services/intellisense/graph"
	"github.com/AleutianAI/Intellisense/services/intellisense/observability"
)

// ============================================================================
// Test Setup
// ============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	reg := prometheus.NewRegistry()
	router := gin.New()
	SetupRoutes(router, Dependencies{
		Store:    graph.NewStore(),
		Agent:    agent.NewService(nil, 0),
		Metrics:  observability.NewMetrics(reg),
		Gatherer: reg,
	})
	return router
}

func do(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ============================================================================
// SetupRoutes Tests
// ============================================================================

func TestSetupRoutes_RegistersEndpoints(t *testing.T) {
	router := newTestRouter(t)

	registered := make(map[string]bool)
	for _, r := range router.Routes() {
		registered[r.Method+" "+r.Path] = true
	}

	expected := []string{
		"GET /health",
		"GET /metrics",
		"POST /graph/query",
		"GET /graph/all",
		"POST /graph/nodes",
		"POST /graph/edges",
		"GET /graph/ws",
		"POST /chat",
		"POST /document/analyze",
	}
	for _, route := range expected {
		assert.True(t, registered[route], "route %s should be registered", route)
	}
	assert.Len(t, router.Routes(), len(expected))
}

func TestSetupRoutes_NoGatherer_NoMetricsRoute(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, Dependencies{Store: graph.NewStore(), Agent: agent.NewService(nil, 0)})

	for _, r := range router.Routes() {
		assert.NotEqual(t, "/metrics", r.Path)
	}
}

func TestSetupRoutes_NilDependencies_Panics(t *testing.T) {
	assert.Panics(t, func() {
		SetupRoutes(gin.New(), Dependencies{Agent: agent.NewService(nil, 0)})
	})
	assert.Panics(t, func() {
		SetupRoutes(gin.New(), Dependencies{Store: graph.NewStore()})
	})
}

func TestSetupRoutes_EndToEnd(t *testing.T) {
	router := newTestRouter(t)

	w := do(router, http.MethodPost, "/graph/edges", `{"source": "a", "target": "b"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(router, http.MethodPost, "/graph/query", `{"node": "a"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"exists": true, "data": {}, "edges": [["a", "b"]]}`, w.Body.String())

	w = do(router, http.MethodPost, "/chat", `{"message": "hi"}`)
	assert.JSONEq(t, `{"response": "Processed: hi"}`, w.Body.String())

	w = do(router, http.MethodGet, "/health", "")
	assert.JSONEq(t, `{"status": "healthy", "nodes": 2, "edges": 1}`, w.Body.String())
}

func TestSetupRoutes_MetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	do(router, http.MethodPost, "/chat", `{"message": "hi"}`)
	w := do(router, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `intellisense_http_requests_total{endpoint="chat",status="200"} 1`)
	assert.Contains(t, w.Body.String(), `intellisense_agent_messages_total{status="success"} 1`)
}

func TestSetupRoutes_UnknownRoute(t *testing.T) {
	w := do(newTestRouter(t), http.MethodGet, "/nope", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error": "not found"}`, w.Body.String())
}
