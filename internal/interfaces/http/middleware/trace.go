package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"faq-rag-api/pkg/logger"
)

// TraceIDHeader 响应中回传的 trace ID
const TraceIDHeader = "X-Trace-ID"

// Tracing otelgin 建 span 后，把 trace_id/span_id 写入 gin 上下文、日志上下文与响应头。
// 响应信封中的 trace_id 来自这里
func Tracing(serviceName string, opts ...otelgin.Option) []gin.HandlerFunc {
	return []gin.HandlerFunc{otelgin.Middleware(serviceName, opts...), traceIDs}
}

func traceIDs(c *gin.Context) {
	sc := trace.SpanContextFromContext(c.Request.Context())
	if !sc.IsValid() {
		c.Next()
		return
	}
	traceID, spanID := sc.TraceID().String(), sc.SpanID().String()
	c.Set("trace_id", traceID)
	c.Set("span_id", spanID)

	ctx := logger.WithContext(c.Request.Context(), logger.TraceIDKey, traceID)
	c.Request = c.Request.WithContext(logger.WithContext(ctx, logger.SpanIDKey, spanID))
	c.Header(TraceIDHeader, traceID)
	c.Next()
}
