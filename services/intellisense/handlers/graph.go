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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/Intellisense/services/intellisense/graph"
	"github.com/AleutianAI/Intellisense/services/intellisense/observability"
	"github.com/AleutianAI/Intellisense/services/intellisense/telemetry"
)

var handlerTracer = otel.Tracer("intellisense.handlers")

// HandleGraphQuery returns the neighborhood of one node.
//
// # Description
//
// POST /graph/query with {"node": "<id>"}. Unknown nodes are a normal
// outcome and return {"exists": false} with status 200.
//
// # Outputs
//
//   - 200: graph.NodeResult
//   - 400: {"error": "'node' is required"}
func HandleGraphQuery(store *graph.Store, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlerTracer.Start(c.Request.Context(), "HandleGraphQuery")
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		var req GraphQueryRequest
		if err := bindRequest(c, &req); err != nil {
			span.SetStatus(codes.Error, err.Error())
			respondBindError(c, metrics, observability.EndpointGraphQuery, err)
			return
		}
		span.SetAttributes(attribute.String("graph.node", req.Node))

		result := store.QueryNode(req.Node)
		span.SetAttributes(
			attribute.Bool("graph.exists", result.Exists),
			attribute.Int("graph.edges", len(result.Edges)),
		)
		respond(c, metrics, observability.EndpointGraphQuery, http.StatusOK, result)
	}
}

// HandleGraphAll returns the whole graph in node-link form.
func HandleGraphAll(store *graph.Store, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := handlerTracer.Start(c.Request.Context(), "HandleGraphAll")
		defer span.End()

		data := store.Snapshot()
		span.SetAttributes(
			attribute.Int("graph.nodes", len(data.Nodes)),
			attribute.Int("graph.links", len(data.Links)),
		)
		respond(c, metrics, observability.EndpointGraphAll, http.StatusOK, data)
	}
}

// HandleAddNode inserts or updates a node.
//
// # Description
//
// POST /graph/nodes with {"id": "<id>", "attributes": {...}}. Repeating the
// call for the same id merges attributes, later keys win.
//
// # Outputs
//
//   - 201: {"status": "created", "id": "<id>"}
//   - 400: {"error": "'id' is required"}
func HandleAddNode(store *graph.Store, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlerTracer.Start(c.Request.Context(), "HandleAddNode")
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		var req AddNodeRequest
		if err := bindRequest(c, &req); err != nil {
			span.SetStatus(codes.Error, err.Error())
			respondBindError(c, metrics, observability.EndpointGraphNodes, err)
			return
		}
		span.SetAttributes(attribute.String("graph.node", req.ID))

		if err := store.AddNode(req.ID, req.Attributes); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			respondStoreError(c, metrics, observability.EndpointGraphNodes, "id", err)
			return
		}
		recordGraphSize(store, metrics)

		telemetry.LoggerWithTrace(ctx, slog.Default()).Debug("node added", "id", req.ID)
		respond(c, metrics, observability.EndpointGraphNodes, http.StatusCreated,
			gin.H{"status": "created", "id": req.ID})
	}
}

// HandleAddEdge inserts an undirected edge, creating missing endpoints.
//
// # Outputs
//
//   - 201: {"status": "created", "source": "<id>", "target": "<id>"}
//   - 400: {"error": "'source' is required"} or {"error": "'target' is required"}
func HandleAddEdge(store *graph.Store, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlerTracer.Start(c.Request.Context(), "HandleAddEdge")
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		var req AddEdgeRequest
		if err := bindRequest(c, &req); err != nil {
			span.SetStatus(codes.Error, err.Error())
			respondBindError(c, metrics, observability.EndpointGraphEdges, err)
			return
		}
		span.SetAttributes(
			attribute.String("graph.source", req.Source),
			attribute.String("graph.target", req.Target),
		)

		if err := store.AddEdge(req.Source, req.Target, req.Attributes); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			respondStoreError(c, metrics, observability.EndpointGraphEdges, "source", err)
			return
		}
		recordGraphSize(store, metrics)

		telemetry.LoggerWithTrace(ctx, slog.Default()).
			Debug("edge added", "source", req.Source, "target", req.Target)
		respond(c, metrics, observability.EndpointGraphEdges, http.StatusCreated,
			gin.H{"status": "created", "source": req.Source, "target": req.Target})
	}
}

// respondStoreError maps a store mutation failure. ErrEmptyNodeID is a
// client error naming field; anything else is internal.
func respondStoreError(c *gin.Context, metrics *observability.Metrics, endpoint observability.Endpoint, field string, err error) {
	if errors.Is(err, graph.ErrEmptyNodeID) {
		respondBindError(c, metrics, endpoint, &errMissingField{Field: field})
		return
	}
	respondInternalError(c, metrics, endpoint, err)
}

func recordGraphSize(store *graph.Store, metrics *observability.Metrics) {
	if metrics == nil {
		return
	}
	stats := store.Stats()
	metrics.SetGraphSize(stats.Nodes, stats.Edges)
}
