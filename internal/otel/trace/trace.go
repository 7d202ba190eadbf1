package trace

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/Alturino/storefront/internal/constants"
)

func InitTracerProvider(
	c context.Context,
	endpoint string,
	serviceName string,
) (*trace.TracerProvider, error) {
	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "trace InitTracerProvider").
		Logger()

	logger = logger.With().Str(constants.KEY_PROCESS, "initializing traceExporter").Logger()
	logger.Info().Msg("initializing traceExporter")
	traceExporter, err := otlptracegrpc.New(
		c,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		logger.Error().Err(err).Msgf("failed creating traceExporter with error=%s", err.Error())
		return nil, err
	}
	logger.Info().Msg("initialized traceExporter")

	logger = logger.With().Str(constants.KEY_PROCESS, "initializing tracerProvider").Logger()
	logger.Info().Msg("initializing tracerProvider")
	traceProvider := trace.NewTracerProvider(
		trace.WithBatcher(traceExporter, trace.WithBatchTimeout(5*time.Second)),
		trace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		)),
	)
	logger.Info().Msg("initialized tracerProvider")

	return traceProvider, nil
}
