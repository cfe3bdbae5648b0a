// Package testutil provides shared helpers for framework tests: a
// context pre-seeded with a logger, a thread-safe log buffer, and
// scripted nodes that record the lifecycle calls made on them.
//
// Packages below node in the import graph (token, progress, node itself)
// cannot use this package from in-package tests. The token and node tests
// need no logger-carrying context; the progress tests import this package
// from an external test package.
package testutil

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/vk/pipegrid/internal/ctxlog"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Context returns a context carrying a logger that discards everything.
func Context() context.Context {
	return ContextWithOutput(io.Discard)
}

// ContextWithOutput returns a context carrying a debug-level text logger
// writing to w.
func ContextWithOutput(w io.Writer) context.Context {
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return ctxlog.WithLogger(context.Background(), logger)
}
