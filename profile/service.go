// Package profile reads and updates the contact details kept for signed-in users.
package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/internal/constants"
	"github.com/Alturino/storefront/internal/otel"
	"github.com/Alturino/storefront/internal/repository"
	"github.com/Alturino/storefront/internal/validate"
)

type Querier interface {
	FindProfileByUserId(c context.Context, userID uuid.UUID) (repository.Profile, error)
	UpsertProfilePhoneNumber(
		c context.Context,
		arg repository.UpsertProfilePhoneNumberParams,
	) (repository.Profile, error)
}

type ProfileService struct {
	queries  Querier
	validate *validator.Validate
}

func NewProfileService(queries Querier) *ProfileService {
	return &ProfileService{queries: queries, validate: validate.New()}
}

// PhoneNumber returns the phone number on file, or "" when the user has none.
func (s *ProfileService) PhoneNumber(c context.Context, userId uuid.UUID) (string, error) {
	c, span := otel.Tracer.Start(c, "ProfileService PhoneNumber")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "ProfileService PhoneNumber").
		Str(constants.KEY_USER_ID, userId.String()).
		Str(constants.KEY_PROCESS, "finding profile").
		Logger()

	logger.Info().Msg("finding profile")
	profile, err := s.queries.FindProfileByUserId(c, userId)
	if errors.Is(err, pgx.ErrNoRows) {
		logger.Info().Msg("profile not found")
		return "", nil
	}
	if err != nil {
		err = fmt.Errorf("failed finding profile with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return "", err
	}
	logger.Info().Bool("hasPhone", profile.Phone() != "").Msg("found profile")

	return profile.Phone(), nil
}

// SavePhoneNumber stores phone in E.164 form, creating the profile when missing.
func (s *ProfileService) SavePhoneNumber(c context.Context, userId uuid.UUID, phone string) error {
	c, span := otel.Tracer.Start(c, "ProfileService SavePhoneNumber")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "ProfileService SavePhoneNumber").
		Str(constants.KEY_USER_ID, userId.String()).
		Logger()

	logger = logger.With().Str(constants.KEY_PROCESS, "validating phone number").Logger()
	logger.Info().Msg("validating phone number")
	if err := s.validate.VarCtx(c, phone, "required,e164"); err != nil {
		err = fmt.Errorf("failed validating phone number with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("validated phone number")

	logger = logger.With().Str(constants.KEY_PROCESS, "saving phone number").Logger()
	logger.Info().Msg("saving phone number")
	_, err := s.queries.UpsertProfilePhoneNumber(c, repository.UpsertProfilePhoneNumberParams{
		UserID:      userId,
		PhoneNumber: repository.TextFromString(phone),
	})
	if err != nil {
		err = fmt.Errorf("failed saving phone number with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("saved phone number")

	return nil
}
