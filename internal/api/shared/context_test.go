package shared_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castpost/castpost-api/internal/api/shared"
)

func TestSetAndGetTraceID(t *testing.T) {
	ctx := shared.SetTraceID(context.Background())

	traceID := shared.GetTraceID(ctx)
	require.NotEmpty(t, traceID)
	assert.Len(t, traceID, shared.TraceIDLength*2) // hex encoded

	// A second context gets a distinct ID.
	other := shared.GetTraceID(shared.SetTraceID(context.Background()))
	assert.NotEqual(t, traceID, other)
}

func TestGetTraceIDMissing(t *testing.T) {
	assert.Empty(t, shared.GetTraceID(context.Background()))
}
