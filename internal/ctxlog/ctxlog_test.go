package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))

	ctx = With(ctx, "job", "lint")
	FromContext(ctx).Info("hello")
	assert.Contains(t, buf.String(), "job=lint")

	assert.Same(t, slog.Default(), FromContext(context.Background()))
}
