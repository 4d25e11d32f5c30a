// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/Intellisense/services/intellisense/config"
)

// execute runs the root command with args and returns its combined output.
func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

// freePort returns a loopback port that was free a moment ago.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, context.Background(), "version")

	require.NoError(t, err)
	assert.Contains(t, out, "intellisense "+Version)
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range newRootCmd().Commands() {
		names[c.Name()] = true
	}

	assert.True(t, names["serve"])
	assert.True(t, names["version"])
}

func TestServeCmd_InvalidPortFlag(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := execute(t, context.Background(), "serve", "--port", "70000")

	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestServeCmd_MissingConfigFile(t *testing.T) {
	_, err := execute(t, context.Background(), "serve", "--config", filepath.Join(t.TempDir(), "absent.yaml"))

	assert.Error(t, err)
}

func TestLoadServeConfig_FlagsOverrideFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "intellisense.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  host: 10.0.0.1\n  port: 7000\n"), 0o644))
	t.Setenv("INTELLISENSE_PORT", "8000")

	cmd := newServeCmd()
	require.NoError(t, cmd.Flags().Set("port", "9000"))

	cfg, err := loadServeConfig(cmd, serveFlags{configPath: path, port: 9000})
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.1", cfg.Server.Host, "host comes from the file")
	assert.Equal(t, 9000, cfg.Server.Port, "flag beats env and file")
}

func TestLoadServeConfig_UnsetFlagsKeepConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("INTELLISENSE_PORT", "8000")

	cfg, err := loadServeConfig(newServeCmd(), serveFlags{})
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestServeCmd_StopsOnCancelledContext(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("OTEL_METRICS_EXPORTER", "none")
	t.Setenv("INTELLISENSE_LOG_LEVEL", "error")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := execute(t, ctx, "serve", "--host", "127.0.0.1", "--port", strconv.Itoa(freePort(t)))

	assert.NoError(t, err)
}

func TestWatchPath(t *testing.T) {
	t.Chdir(t.TempDir())

	assert.Equal(t, "custom.yaml", watchPath("custom.yaml"))
	assert.Empty(t, watchPath(""), "no default file present")

	require.NoError(t, os.WriteFile(config.DefaultPath, []byte("{}\n"), 0o644))
	assert.Equal(t, config.DefaultPath, watchPath(""))
}
