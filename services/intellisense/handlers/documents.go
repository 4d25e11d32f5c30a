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

	"github.com/AleutianAI/Intellisense/services/intellisense/observability"
)

// SummaryLength is the number of characters kept by AnalyzeDocument.
const SummaryLength = 100

// AnalyzeDocument returns the first SummaryLength characters of content and
// its total character count. Characters are Unicode code points, so a
// multi-byte rune is never split.
func AnalyzeDocument(content string) DocumentAnalyzeResponse {
	runes := []rune(content)
	return DocumentAnalyzeResponse{
		Summary: string(runes[:min(SummaryLength, len(runes))]),
		Length:  len(runes),
	}
}

// HandleDocumentAnalyze is POST /document/analyze.
//
// content is optional; a missing field or an empty body analyzes "".
// Only malformed JSON is rejected.
func HandleDocumentAnalyze(metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlerTracer.Start(c.Request.Context(), "HandleDocumentAnalyze")
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		var req DocumentAnalyzeRequest
		if err := bindRequest(c, &req); err != nil {
			span.SetStatus(codes.Error, err.Error())
			respondBindError(c, metrics, observability.EndpointDocumentAnalyze, err)
			return
		}

		result := AnalyzeDocument(req.Content)
		span.SetAttributes(attribute.Int("document.length", result.Length))
		respond(c, metrics, observability.EndpointDocumentAnalyze, http.StatusOK, result)
	}
}
