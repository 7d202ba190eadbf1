package log

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/Alturino/storefront/internal/constants"
)

type requestId struct{}

func RequestIDFromContext(c context.Context) string {
	id, _ := c.Value(requestId{}).(string)
	return id
}

func AttachRequestIDToContext(c context.Context, h string) context.Context {
	return context.WithValue(c, requestId{}, h)
}

// AttachTraceIdFromContext enriches events logged with Ctx(c) with the request and span ids.
func AttachTraceIdFromContext() zerolog.HookFunc {
	return func(e *zerolog.Event, level zerolog.Level, message string) {
		c := e.GetCtx()
		if c == nil {
			return
		}
		if reqId := RequestIDFromContext(c); reqId != "" {
			e.Str(constants.KEY_REQUEST_ID, reqId)
		}
		spanCtx := trace.SpanContextFromContext(c)
		if spanCtx.IsValid() {
			e.Str(constants.KEY_TRACE_ID, spanCtx.TraceID().String()).
				Str(constants.KEY_SPAN_ID, spanCtx.SpanID().String())
		}
	}
}
