package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/missionengine/internal/platform/ctxutil"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"
)

// AttachTraceContext assigns every request a trace id and a request id and
// echoes both in the response. The active span's trace id wins over the
// header; a header value is kept only if it is a well-formed W3C trace id.
// The request id and, once the handler has run, the mission id are recorded
// on the span.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		reqID := strings.TrimSpace(c.GetHeader(headerRequestID))
		if reqID == "" {
			reqID = uuid.New().String()
		}
		traceID := ""
		if sc := span.SpanContext(); sc.HasTraceID() {
			traceID = sc.TraceID().String()
		} else if id, err := trace.TraceIDFromHex(strings.TrimSpace(c.GetHeader(headerTraceID))); err == nil {
			traceID = id.String()
		} else {
			traceID = strings.ReplaceAll(uuid.New().String(), "-", "")
		}

		ctx := ctxutil.WithTraceData(c.Request.Context(), &ctxutil.TraceData{
			TraceID:   traceID,
			RequestID: reqID,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set(headerTraceID, traceID)
		c.Writer.Header().Set(headerRequestID, reqID)
		span.SetAttributes(attribute.String("missions.request_id", reqID))

		c.Next()

		if id := c.Param("mission_id"); id != "" {
			span.SetAttributes(attribute.String("missions.mission_id", id))
		}
	}
}
