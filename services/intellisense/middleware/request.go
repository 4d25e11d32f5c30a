// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides gin middleware for the Intellisense API.
//
// # Request Flow
//
//	Request
//	   │
//	   ▼
//	RequestID ──► reuse or mint X-Request-ID, store in context
//	   │
//	   ▼
//	AccessLog ──► one slog record per request after the handler returns
//	   │
//	   ▼
//	Handler (retrieves ID via GetRequestID)
package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/Intellisense/services/intellisense/telemetry"
)

// HeaderRequestID carries the request correlation ID in both directions.
const HeaderRequestID = "X-Request-ID"

// requestIDKey is the gin context key for the request ID.
const requestIDKey = "intellisense_request_id"

// maxRequestIDLen caps client-supplied IDs. Longer values are replaced.
const maxRequestIDLen = 128

// =============================================================================
// Context Helpers
// =============================================================================

// SetRequestID stores id in the gin context.
func SetRequestID(c *gin.Context, id string) {
	c.Set(requestIDKey, id)
}

// GetRequestID returns the request ID stored by RequestID, or "" when absent.
func GetRequestID(c *gin.Context) string {
	if v, exists := c.Get(requestIDKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// =============================================================================
// Middleware
// =============================================================================

// RequestID assigns every request a correlation ID.
//
// # Description
//
// A client-supplied X-Request-ID is kept when it is non-empty and at most
// 128 bytes. Otherwise a random UUID is generated. The ID is echoed in the
// response header and stored for GetRequestID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		SetRequestID(c, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// AccessLog writes one structured record per completed request.
//
// # Inputs
//
//   - logger: Destination. Nil uses slog.Default().
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware logging method, path, route, status,
//     latency, client IP, request ID, and trace/span IDs when present.
//     5xx responses log at Error, 4xx at Warn, the rest at Info.
func AccessLog(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", c.FullPath(),
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"request_id", GetRequestID(c),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		telemetry.LoggerWithTrace(c.Request.Context(), logger).
			Log(c.Request.Context(), level, "request completed", attrs...)
	}
}
