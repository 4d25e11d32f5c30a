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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/Intellisense/services/intellisense/agent"
	"github.com/AleutianAI/Intellisense/services/intellisense/graph"
	"github.com/AleutianAI/Intellisense/services/intellisense/handlers"
	"github.com/AleutianAI/Intellisense/services/intellisense/observability"
)

// Dependencies are the shared components the routes are bound to.
//
// # Fields
//
//   - Store: Graph backing /graph/*. Required.
//   - Agent: Chat agent backing /chat. Required.
//   - Metrics: Request metrics. Nil disables counting.
//   - Gatherer: Source for /metrics. Nil omits the route.
//   - Feed: Options for the /graph/ws live feed.
type Dependencies struct {
	Store    *graph.Store
	Agent    *agent.Service
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer
	Feed     handlers.FeedOptions
}

// SetupRoutes registers every Intellisense endpoint on router.
//
// Panics if deps.Store or deps.Agent is nil.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	if deps.Store == nil {
		panic("routes: nil graph store")
	}
	if deps.Agent == nil {
		panic("routes: nil agent service")
	}

	router.GET("/health", handlers.HandleHealth(deps.Store))
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	graphGroup := router.Group("/graph")
	{
		graphGroup.POST("/query", handlers.HandleGraphQuery(deps.Store, deps.Metrics))
		graphGroup.GET("/all", handlers.HandleGraphAll(deps.Store, deps.Metrics))
		graphGroup.POST("/nodes", handlers.HandleAddNode(deps.Store, deps.Metrics))
		graphGroup.POST("/edges", handlers.HandleAddEdge(deps.Store, deps.Metrics))
		graphGroup.GET("/ws", handlers.HandleGraphFeed(deps.Store, deps.Metrics, deps.Feed))
	}

	router.POST("/chat", handlers.HandleChat(deps.Agent, deps.Metrics))
	router.POST("/document/analyze", handlers.HandleDocumentAnalyze(deps.Metrics))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
}
