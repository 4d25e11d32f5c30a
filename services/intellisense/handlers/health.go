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

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/Intellisense/services/intellisense/graph"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Nodes  int    `json:"nodes"`
	Edges  int    `json:"edges"`
}

// HandleHealth reports liveness and the current graph size.
func HandleHealth(store *graph.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := store.Stats()
		c.JSON(http.StatusOK, HealthResponse{
			Status: "healthy",
			Nodes:  stats.Nodes,
			Edges:  stats.Edges,
		})
	}
}
