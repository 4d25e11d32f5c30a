// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of events an editor save produces.
const reloadDebounce = 200 * time.Millisecond

// Watch reloads the YAML file at path whenever it changes.
//
// # Description
//
// The parent directory is watched so that atomic saves (write to temp,
// rename over the original) are seen. After a quiet period of 200ms the
// file is re-read with Load, which re-applies the environment, then
// validated. Valid results are passed to onChange on the Watch goroutine;
// invalid ones are logged and skipped, leaving the previous values in
// effect.
//
// # Inputs
//
//   - ctx: Watch returns nil when ctx is done.
//   - path: File to watch. Must be non-empty.
//   - onChange: Called with each valid reloaded configuration.
//   - logger: Receives reload warnings. Nil uses slog.Default().
//
// # Outputs
//
//   - error: Non-nil only if the watcher cannot be started.
//
// # Limitations
//
//   - Command-line flag overrides are not re-applied.
func Watch(ctx context.Context, path string, onChange func(Config), logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	logger.Debug("Watching configuration file", "path", target)

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce = time.After(reloadDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Configuration watcher error", "error", err)

		case <-debounce:
			debounce = nil

			cfg, err := Load(target)
			if err == nil {
				err = cfg.Validate()
			}
			if err != nil {
				logger.Warn("Ignoring configuration reload", "path", target, "error", err)
				continue
			}
			logger.Info("Configuration reloaded", "path", target)
			onChange(cfg)
		}
	}
}
