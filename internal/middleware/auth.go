package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/internal"
	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/constants"
	inErrors "github.com/Alturino/storefront/internal/errors"
	inHttp "github.com/Alturino/storefront/internal/http"
)

// Auth attaches the signed-in user to the request context. Requests without an
// Authorization header continue as guests, a present but invalid token is rejected.
func Auth(cfg config.Auth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := zerolog.Ctx(r.Context()).
				With().
				Str(constants.KEY_TAG, "middleware Auth").
				Logger()
			c := logger.WithContext(r.Context())

			authorization := r.Header.Get(inHttp.KEY_HEADER_AUTHORIZATION)
			if authorization == "" {
				logger.Trace().Msg("no authorization continuing as guest")
				next.ServeHTTP(w, r)
				return
			}

			token, found := strings.CutPrefix(authorization, "Bearer ")
			if !found {
				token, found = strings.CutPrefix(authorization, "bearer ")
			}
			if !found || token == "" {
				logger.Error().Err(inErrors.ErrEmptyAuth).Msg(inErrors.ErrEmptyAuth.Error())
				inHttp.WriteFailed(c, w, http.StatusUnauthorized, inErrors.ErrEmptyAuth.Error())
				return
			}

			jwtToken, err := internal.VerifyToken(c, token, cfg)
			if err != nil {
				logger.Error().Err(err).Msg(err.Error())
				inHttp.WriteFailed(c, w, http.StatusUnauthorized, inErrors.ErrTokenInvalid.Error())
				return
			}

			userId, err := internal.UserIdFromToken(c, jwtToken)
			if err != nil {
				logger.Error().Err(err).Msg(err.Error())
				inHttp.WriteFailed(c, w, http.StatusUnauthorized, inErrors.ErrTokenInvalid.Error())
				return
			}

			logger = logger.With().Str(constants.KEY_USER_ID, userId.String()).Logger()
			c = logger.WithContext(internal.AttachUserId(c, userId))
			next.ServeHTTP(w, r.WithContext(c))
		})
	}
}
