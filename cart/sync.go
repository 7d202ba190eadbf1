package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/internal/constants"
	"github.com/Alturino/storefront/internal/otel"
)

type SyncOutcome string

const (
	SyncNothing       SyncOutcome = "nothing"
	SyncReplacedLocal SyncOutcome = "replaced_local"
	SyncPushedLocal   SyncOutcome = "pushed_local"
)

// SyncOnSignIn reconciles the device cart with the user's saved cart. A non-empty saved
// cart replaces the device cart wholesale; otherwise a non-empty device cart becomes the
// saved cart. Lines are never merged individually.
func (s *Store) SyncOnSignIn(
	c context.Context,
	userID uuid.UUID,
	remote RemoteCart,
) (SyncOutcome, error) {
	c, span := otel.Tracer.Start(c, "CartStore SyncOnSignIn")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "CartStore SyncOnSignIn").
		Str(constants.KEY_USER_ID, userID.String()).
		Logger()

	logger = logger.With().Str(constants.KEY_PROCESS, "finding saved cart").Logger()
	logger.Info().Msg("finding saved cart")
	saved, err := remote.FindCartItems(c, userID)
	if err != nil {
		err = fmt.Errorf("failed finding saved cart with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return SyncNothing, err
	}
	logger.Info().Int(constants.KEY_CART_ITEMS, len(saved)).Msg("found saved cart")

	if len(saved) > 0 {
		logger = logger.With().Str(constants.KEY_PROCESS, "replacing device cart").Logger()
		logger.Info().Msg("replacing device cart")
		s.replaceItems(logger.WithContext(c), saved)
		logger.Info().Msg("replaced device cart")
		return SyncReplacedLocal, nil
	}

	local := s.Items()
	if len(local) == 0 {
		logger.Info().Msg("nothing to sync")
		return SyncNothing, nil
	}

	logger = logger.With().
		Str(constants.KEY_PROCESS, "pushing device cart").
		Int(constants.KEY_CART_ITEMS, len(local)).
		Logger()
	logger.Info().Msg("pushing device cart")
	if err := remote.ReplaceCartItems(c, userID, local); err != nil {
		err = fmt.Errorf("failed pushing device cart with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return SyncNothing, err
	}
	logger.Info().Msg("pushed device cart")

	return SyncPushedLocal, nil
}
