package internal

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/constants"
	"github.com/Alturino/storefront/internal/errors"
	"github.com/Alturino/storefront/internal/otel"
)

// VerifyToken parses an access token issued by the managed auth provider.
func VerifyToken(c context.Context, token string, cfg config.Auth) (*jwt.Token, error) {
	c, span := otel.Tracer.Start(c, "VerifyToken")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "VerifyToken").
		Logger()

	opts := []jwt.ParserOption{
		jwt.WithAudience(constants.AUDIENCE_AUTHENTICATED),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	logger = logger.With().Str(constants.KEY_PROCESS, "parsing claims").Logger()
	logger.Trace().Msg("parsing claims")
	jwtToken, err := jwt.ParseWithClaims(
		token,
		&jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) {
			return []byte(cfg.JwtSecret), nil
		},
		opts...,
	)
	if err != nil {
		err = fmt.Errorf("failed parsing claims with error=%w", errors.ErrTokenInvalid)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	logger.Trace().Msg("parsed claims")

	logger = logger.With().Str(constants.KEY_PROCESS, "validating token").Logger()
	logger.Trace().Msg("validating token")
	if !jwtToken.Valid {
		err = fmt.Errorf("failed validating token with error=%w", errors.ErrTokenInvalid)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}
	logger.Trace().Msg("validated token")

	return jwtToken, nil
}

func UserIdFromToken(c context.Context, token *jwt.Token) (uuid.UUID, error) {
	c, span := otel.Tracer.Start(c, "UserIdFromToken")
	defer span.End()

	logger := zerolog.Ctx(c).With().Str(constants.KEY_TAG, "UserIdFromToken").Logger()

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		err = fmt.Errorf("failed getting subject from jwt with error=%w", errors.ErrEmptySubject)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return uuid.Nil, err
	}

	userId, err := uuid.Parse(subject)
	if err != nil {
		err = fmt.Errorf("failed parsing subject=%s with error=%w", subject, err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return uuid.Nil, err
	}
	logger.Trace().Str(constants.KEY_USER_ID, userId.String()).Msg("parsed subject as userId")

	return userId, nil
}

type userIdKey struct{}

func AttachUserId(c context.Context, userId uuid.UUID) context.Context {
	return context.WithValue(c, userIdKey{}, userId)
}

// UserIdFromContext reports the signed-in user, ok is false for guests.
func UserIdFromContext(c context.Context) (uuid.UUID, bool) {
	userId, ok := c.Value(userIdKey{}).(uuid.UUID)
	return userId, ok && userId != uuid.Nil
}

type sessionIdKey struct{}

func AttachSessionId(c context.Context, sessionId string) context.Context {
	return context.WithValue(c, sessionIdKey{}, sessionId)
}

func SessionIdFromContext(c context.Context) string {
	id, _ := c.Value(sessionIdKey{}).(string)
	return id
}
