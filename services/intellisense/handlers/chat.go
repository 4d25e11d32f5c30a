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
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/Intellisense/services/intellisense/agent"
	"github.com/AleutianAI/Intellisense/services/intellisense/observability"
)

// HandleChat passes a message through the agent.
//
// # Description
//
// POST /chat with {"message": "<text>"}. The agent call runs on the request
// goroutine; the agent's worker bound may make it wait for a free slot.
//
// # Outputs
//
//   - 200: {"response": "<processed>"}
//   - 400: {"error": "'message' is required"}
//   - 500: {"error": "internal server error"} when the agent fails
func HandleChat(svc *agent.Service, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlerTracer.Start(c.Request.Context(), "HandleChat")
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		var req ChatRequest
		if err := bindRequest(c, &req); err != nil {
			span.SetStatus(codes.Error, err.Error())
			respondBindError(c, metrics, observability.EndpointChat, err)
			return
		}
		span.SetAttributes(attribute.Int("chat.message_length", len(req.Message)))

		response, err := svc.Process(ctx, req.Message)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			metrics.RecordAgentMessage(false)
			respondInternalError(c, metrics, observability.EndpointChat, err)
			return
		}

		metrics.RecordAgentMessage(true)
		respond(c, metrics, observability.EndpointChat, http.StatusOK, ChatResponse{Response: response})
	}
}
