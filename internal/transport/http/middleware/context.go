package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// TraceIDHeader carries the trace identifier on requests and responses.
const TraceIDHeader = "X-Trace-ID"

const traceIDKey = "trace_id"

// EnrichContext resolves a trace ID for the request and reflects it back in
// the response. A recorded OTel span wins, then an inbound header, then a
// fresh UUID.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := ""
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			traceID = sc.TraceID().String()
		}
		if traceID == "" {
			traceID = c.GetHeader(TraceIDHeader)
		}
		if traceID == "" {
			traceID = uuid.NewString()
		}

		c.Set(traceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)
		c.Next()
	}
}

// GetTraceID returns the trace ID resolved by EnrichContext, or "".
func GetTraceID(c *gin.Context) string {
	return c.GetString(traceIDKey)
}
