package middleware

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestTracingSetsTraceHeader(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	r := newEngine(Tracing("faq-rag-api", otelgin.WithTracerProvider(tp))...)
	w := doGet(r, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Regexp(t, `^[0-9a-f]{32}$`, w.Header().Get(TraceIDHeader))
}

func TestTracingWithoutProviderIsPassThrough(t *testing.T) {
	r := newEngine(Tracing("faq-rag-api")...)
	w := doGet(r, nil)

	assert.Equal(t, http.StatusOK, w.Code)
}
