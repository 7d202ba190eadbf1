package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/internal/constants"
	"github.com/Alturino/storefront/internal/otel"
)

type RedisStorage struct {
	cache *redis.Client
	ttl   time.Duration
}

func NewRedisStorage(cache *redis.Client, ttl time.Duration) *RedisStorage {
	return &RedisStorage{cache: cache, ttl: ttl}
}

func (s *RedisStorage) Load(c context.Context, key string, v interface{}) (bool, error) {
	c, span := otel.Tracer.Start(c, "RedisStorage Load")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "RedisStorage Load").
		Str(constants.KEY_STORAGE_KEY, key).
		Logger()

	logger = logger.With().Str(constants.KEY_PROCESS, "getting state from cache").Logger()
	logger.Trace().Msg("getting state from cache")
	data, err := s.cache.Get(c, key).Bytes()
	if errors.Is(err, redis.Nil) {
		logger.Trace().Msg("state not found in cache")
		return false, nil
	}
	if err != nil {
		err = fmt.Errorf("failed getting key=%s from cache with error=%w", key, err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return false, err
	}
	logger.Trace().Msg("got state from cache")

	logger = logger.With().Str(constants.KEY_PROCESS, "decoding state").Logger()
	logger.Trace().Msg("decoding state")
	if err := decode(data, v); err != nil {
		err = fmt.Errorf("failed decoding key=%s with error=%w", key, err)
		otel.RecordError(err, span)
		logger.Warn().Err(err).Msg(err.Error())
		return false, nil
	}
	logger.Trace().Msg("decoded state")

	return true, nil
}

func (s *RedisStorage) Save(c context.Context, key string, v interface{}) error {
	c, span := otel.Tracer.Start(c, "RedisStorage Save")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "RedisStorage Save").
		Str(constants.KEY_STORAGE_KEY, key).
		Logger()

	logger = logger.With().Str(constants.KEY_PROCESS, "encoding state").Logger()
	data, err := encode(v)
	if err != nil {
		err = fmt.Errorf("failed encoding key=%s with error=%w", key, err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}

	logger = logger.With().Str(constants.KEY_PROCESS, "setting state to cache").Logger()
	logger.Trace().Msg("setting state to cache")
	if err := s.cache.Set(c, key, data, s.ttl).Err(); err != nil {
		err = fmt.Errorf("failed setting key=%s to cache with error=%w", key, err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Trace().Msg("set state to cache")

	return nil
}

func (s *RedisStorage) Delete(c context.Context, key string) error {
	c, span := otel.Tracer.Start(c, "RedisStorage Delete")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "RedisStorage Delete").
		Str(constants.KEY_STORAGE_KEY, key).
		Str(constants.KEY_PROCESS, "deleting state from cache").
		Logger()

	logger.Trace().Msg("deleting state from cache")
	if err := s.cache.Del(c, key).Err(); err != nil {
		err = fmt.Errorf("failed deleting key=%s from cache with error=%w", key, err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Trace().Msg("deleted state from cache")

	return nil
}
