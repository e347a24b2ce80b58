package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext_ReturnsEmbeddedLogger(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))
	ctx := WithLogger(context.Background(), logger)

	// --- Act ---
	got := FromContext(ctx)

	// --- Assert ---
	require.Same(t, logger, got)
}

func TestFromContext_FallsBackToDefault(t *testing.T) {
	t.Parallel()

	got := FromContext(context.Background())

	assert.Same(t, slog.Default(), got)
}

func TestWith_AddsAttributes(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	buf := &bytes.Buffer{}
	ctx := WithLogger(context.Background(), slog.New(slog.NewTextHandler(buf, nil)))

	// --- Act ---
	ctx, logger := With(ctx, "module", "rules-engine")
	logger.Info("hello")
	FromContext(ctx).Info("again")

	// --- Assert ---
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("module=rules-engine")))
}
