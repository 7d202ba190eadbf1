package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Alturino/storefront/internal/constants"
	"github.com/Alturino/storefront/internal/otel"
)

func WriteJsonResponse(
	c context.Context,
	w http.ResponseWriter,
	header map[string]string,
	body map[string]interface{},
) {
	c, span := otel.Tracer.Start(c, "WriteJsonResponse")
	defer span.End()

	logger := zerolog.Ctx(c).With().Str(constants.KEY_TAG, "WriteJsonResponse").Logger()

	w.Header().Add(KEY_HEADER_CONTENT_TYPE, VALUE_HEADER_APPLICATION_JSON)
	for k, v := range header {
		w.Header().Add(k, v)
	}

	if v, ok := body["statusCode"].(int); ok {
		w.WriteHeader(v)
	}

	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return
	}
}

func WriteFailed(c context.Context, w http.ResponseWriter, statusCode int, message string) {
	WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "failed",
		"statusCode": statusCode,
		"message":    message,
	})
}

func WriteSuccess(
	c context.Context,
	w http.ResponseWriter,
	message string,
	data map[string]interface{},
) {
	WriteJsonResponse(c, w, map[string]string{}, map[string]interface{}{
		"status":     "success",
		"statusCode": http.StatusOK,
		"message":    message,
		"data":       data,
	})
}
