package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/internal"
	"github.com/Alturino/storefront/internal/constants"
	inErrors "github.com/Alturino/storefront/internal/errors"
	inHttp "github.com/Alturino/storefront/internal/http"
)

// Session resolves the browser session id, minting one when the client has none yet.
func Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := zerolog.Ctx(r.Context()).
			With().
			Str(constants.KEY_TAG, "middleware Session").
			Logger()

		sessionId := r.Header.Get(inHttp.KEY_HEADER_SESSION_ID)
		if sessionId == "" {
			sessionId = uuid.NewString()
			logger.Trace().Msg("minted new session id")
		} else if _, err := uuid.Parse(sessionId); err != nil {
			logger.Error().Err(inErrors.ErrInvalidSession).Msg(inErrors.ErrInvalidSession.Error())
			inHttp.WriteFailed(
				logger.WithContext(r.Context()),
				w,
				http.StatusBadRequest,
				inErrors.ErrInvalidSession.Error(),
			)
			return
		}
		w.Header().Set(inHttp.KEY_HEADER_SESSION_ID, sessionId)

		logger = logger.With().Str(constants.KEY_SESSION_ID, sessionId).Logger()
		c := logger.WithContext(internal.AttachSessionId(r.Context(), sessionId))
		next.ServeHTTP(w, r.WithContext(c))
	})
}
