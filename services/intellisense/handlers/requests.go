// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the Intellisense HTTP endpoints.
//
// Every handler is a constructor returning a gin.HandlerFunc closed over its
// dependencies. Client errors use the body {"error": "<message>"}.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/Intellisense/services/intellisense/observability"
	"github.com/AleutianAI/Intellisense/services/intellisense/telemetry"
)

// Client-facing error messages.
const (
	msgInvalidBody   = "invalid request body"
	msgInternalError = "internal server error"
)

// =============================================================================
// Request Types
// =============================================================================

// GraphQueryRequest is the body of POST /graph/query.
type GraphQueryRequest struct {
	Node string `json:"node" validate:"required"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message string `json:"message" validate:"required"`
}

// ChatResponse is returned by POST /chat.
type ChatResponse struct {
	Response string `json:"response"`
}

// DocumentAnalyzeRequest is the body of POST /document/analyze.
// Content is optional and defaults to "".
type DocumentAnalyzeRequest struct {
	Content string `json:"content"`
}

// DocumentAnalyzeResponse is returned by POST /document/analyze.
type DocumentAnalyzeResponse struct {
	Summary string `json:"summary"`
	Length  int    `json:"length"`
}

// AddNodeRequest is the body of POST /graph/nodes.
type AddNodeRequest struct {
	ID         string         `json:"id" validate:"required"`
	Attributes map[string]any `json:"attributes"`
}

// AddEdgeRequest is the body of POST /graph/edges.
type AddEdgeRequest struct {
	Source     string         `json:"source" validate:"required"`
	Target     string         `json:"target" validate:"required"`
	Attributes map[string]any `json:"attributes"`
}

// =============================================================================
// Binding and Validation
// =============================================================================

var requestValidate = newRequestValidator()

// newRequestValidator reports fields by their JSON names.
func newRequestValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// errMissingField names the first required field that was absent or empty.
type errMissingField struct {
	Field string
}

func (e *errMissingField) Error() string {
	return fmt.Sprintf("'%s' is required", e.Field)
}

// errMalformedBody wraps a JSON decode failure.
var errMalformedBody = errors.New(msgInvalidBody)

// bindRequest decodes the JSON body into dst and validates it.
//
// # Description
//
// An empty body decodes as {}. A body that is not valid JSON for dst
// yields errMalformedBody. A failed "required" rule yields *errMissingField
// for the first failing field in declaration order.
func bindRequest(c *gin.Context, dst any) error {
	if c.Request.Body != nil {
		if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %v", errMalformedBody, err)
		}
	}

	if err := requestValidate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &errMissingField{Field: verrs[0].Field()}
		}
		return err
	}
	return nil
}

// =============================================================================
// Responses
// =============================================================================

// respond writes body with status and counts the request.
func respond(c *gin.Context, metrics *observability.Metrics, endpoint observability.Endpoint, status int, body any) {
	metrics.RecordRequest(endpoint, status)
	c.JSON(status, body)
}

// respondBindError maps a bindRequest failure to its HTTP response.
//
// # Outputs
//
//   - 400 {"error": "'<field>' is required"} for a missing field
//   - 400 {"error": "invalid request body"} for malformed JSON
//   - 500 {"error": "internal server error"} otherwise
func respondBindError(c *gin.Context, metrics *observability.Metrics, endpoint observability.Endpoint, err error) {
	logger := telemetry.LoggerWithTrace(c.Request.Context(), slog.Default()).
		With("endpoint", string(endpoint))

	var missing *errMissingField
	switch {
	case errors.As(err, &missing):
		logger.Warn("request rejected", "field", missing.Field)
		metrics.RecordValidationError(endpoint, missing.Field)
		respond(c, metrics, endpoint, http.StatusBadRequest, gin.H{"error": missing.Error()})

	case errors.Is(err, errMalformedBody):
		logger.Warn("malformed request body", "error", err)
		respond(c, metrics, endpoint, http.StatusBadRequest, gin.H{"error": msgInvalidBody})

	default:
		respondInternalError(c, metrics, endpoint, err)
	}
}

// respondInternalError logs err and returns the generic 500 body.
func respondInternalError(c *gin.Context, metrics *observability.Metrics, endpoint observability.Endpoint, err error) {
	telemetry.LoggerWithTrace(c.Request.Context(), slog.Default()).
		Error("request failed", "endpoint", string(endpoint), "error", err)
	_ = c.Error(err)
	respond(c, metrics, endpoint, http.StatusInternalServerError, gin.H{"error": msgInternalError})
}
