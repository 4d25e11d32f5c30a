// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agent provides the chat message processing seam.
//
// # Description
//
// The open source build ships EchoProcessor, which tags the input and
// returns it. A real inference backend (queued LLM calls) plugs in by
// implementing Processor; handlers only ever see Service.
//
//	Handler ──► Service.Process ──► [admission: MaxWorkers] ──► Processor
//
// # Thread Safety
//
// Service and EchoProcessor are safe for concurrent use.
package agent

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// ResponsePrefix is prepended to every message by EchoProcessor.
const ResponsePrefix = "Processed: "

// DefaultMaxWorkers bounds concurrent Processor calls when no value is configured.
const DefaultMaxWorkers = 4

// =============================================================================
// Interface Definition
// =============================================================================

// Processor turns a chat message into a response.
//
// # Description
//
// Implementations may be slow (model inference) but must honour ctx.
// The echo implementation never fails.
type Processor interface {
	Process(ctx context.Context, message string) (string, error)
}

// =============================================================================
// Echo Implementation
// =============================================================================

// EchoProcessor is the placeholder Processor. It has no state.
type EchoProcessor struct{}

// Process returns "Processed: " + message.
func (EchoProcessor) Process(_ context.Context, message string) (string, error) {
	return ResponsePrefix + message, nil
}

// =============================================================================
// Service
// =============================================================================

// Service bounds how many Processor calls run at once.
//
// # Description
//
// Calls run synchronously on the caller's goroutine. The weighted
// semaphore only limits concurrency; there is no queue, timeout, or
// retry. A caller waiting for a slot gives up when its context ends.
//
// # Fields
//
//   - processor: The wrapped Processor.
//   - slots: Admission semaphore sized by MaxWorkers.
//   - maxWorkers: Configured bound, reported by MaxWorkers().
type Service struct {
	processor  Processor
	slots      *semaphore.Weighted
	maxWorkers int
}

// NewService wraps p with an admission bound of maxWorkers.
//
// # Inputs
//
//   - p: Processor to wrap. Nil selects EchoProcessor.
//   - maxWorkers: Maximum concurrent calls. Values below 1 select DefaultMaxWorkers.
//
// # Outputs
//
//   - *Service: Ready to use.
func NewService(p Processor, maxWorkers int) *Service {
	if p == nil {
		p = EchoProcessor{}
	}
	if maxWorkers < 1 {
		maxWorkers = DefaultMaxWorkers
	}
	return &Service{
		processor:  p,
		slots:      semaphore.NewWeighted(int64(maxWorkers)),
		maxWorkers: maxWorkers,
	}
}

// Process runs the wrapped Processor once a worker slot is free.
//
// # Outputs
//
//   - string: The processed response.
//   - error: Non-nil if ctx ended while waiting, or the Processor failed.
func (s *Service) Process(ctx context.Context, message string) (string, error) {
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquire agent worker: %w", err)
	}
	defer s.slots.Release(1)

	return s.processor.Process(ctx, message)
}

// MaxWorkers returns the configured concurrency bound.
func (s *Service) MaxWorkers() int {
	return s.maxWorkers
}

var (
	_ Processor = EchoProcessor{}
	_ Processor = (*Service)(nil)
)
