package telemetry

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitServesMetrics(t *testing.T) {
	p, err := Init(true, "test")
	require.NoError(t, err)
	t.Cleanup(func() { p.Shutdown(context.Background()) })
	require.NotNil(t, p.Handler)

	c, err := otel.Meter("telemetry_test").Int64Counter("dwell.test.hits")
	require.NoError(t, err)
	c.Add(context.Background(), 3)

	rec := httptest.NewRecorder()
	p.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), "dwell_test_hits")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestTraceID(t *testing.T) {
	p, err := Init(false, "test")
	require.NoError(t, err)
	t.Cleanup(func() { p.Shutdown(context.Background()) })
	assert.Nil(t, p.Handler)

	assert.Empty(t, TraceID(context.Background()))
	ctx, span := StartSpan(context.Background(), "op")
	defer span.End()
	assert.Len(t, TraceID(ctx), 32)
}
