package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Alturino/storefront/internal/constants"
	inHttp "github.com/Alturino/storefront/internal/http"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/otel"
)

func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(inHttp.KEY_HEADER_REQUEST_ID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c, span := otel.Tracer.Start(
			r.Context(),
			"middleware Logging",
			trace.WithAttributes(
				attribute.String(constants.KEY_REQUEST_ID, requestID),
				attribute.String(constants.KEY_REQUEST_HOST, r.Host),
				attribute.String(constants.KEY_REQUEST_IP, r.RemoteAddr),
				attribute.String(constants.KEY_REQUEST_METHOD, r.Method),
				attribute.String(constants.KEY_REQUEST_URI, r.RequestURI),
				attribute.String(constants.KEY_REQUEST_URL, r.URL.String()),
			),
		)
		defer span.End()

		logger := zerolog.Ctx(c).
			With().
			Str(constants.KEY_REQUEST_ID, requestID).
			Dict(constants.KEY_REQUEST, zerolog.Dict().
				Str(constants.KEY_REQUEST_HOST, r.Host).
				Str(constants.KEY_REQUEST_IP, r.RemoteAddr).
				Str(constants.KEY_REQUEST_METHOD, r.Method).
				Str(constants.KEY_REQUEST_URI, r.RequestURI)).
			Str(constants.KEY_TAG, "middleware Logging").
			Logger()

		logger.Trace().Msg("attaching request value to context")
		c = log.AttachRequestIDToContext(c, requestID)
		c = logger.WithContext(c)
		r = r.WithContext(c)
		w.Header().Set(inHttp.KEY_HEADER_REQUEST_ID, requestID)
		logger.Trace().Msg("attached request value to context")

		next.ServeHTTP(w, r)
	})
}
