package tracer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestOTelAttrs(t *testing.T) {
	got := otelAttrs([]Attribute{
		String("http.method", "GET"),
		{Key: "queued", Value: []string{"a", "b"}},
		{Key: "backoff", Value: 250 * time.Millisecond},
		{Key: "skipped", Value: nil},
		{Key: "status", Value: uint16(503)},
	})

	assert.Equal(t, []attribute.KeyValue{
		attribute.String("http.method", "GET"),
		attribute.StringSlice("queued", []string{"a", "b"}),
		attribute.Int64("backoff_ms", 250),
		attribute.String("status", "503"),
	}, got)
	assert.Nil(t, otelAttrs(nil))
}
