package metric

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/Alturino/storefront/internal/constants"
)

func InitMetricProvider(
	c context.Context,
	endpoint string,
	serviceName string,
) (*metric.MeterProvider, error) {
	logger := zerolog.Ctx(c).
		With().
		Str(constants.KEY_TAG, "metric InitMetricProvider").
		Str(constants.KEY_PROCESS, "initializing metricExporter").
		Logger()

	logger.Info().Msg("initializing metricExporter")
	metricExporter, err := otlpmetricgrpc.New(
		c,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		logger.Error().Err(err).Msgf("failed creating metricExporter with error=%s", err.Error())
		return nil, err
	}
	logger.Info().Msg("initialized metricExporter")

	meterProvider := metric.NewMeterProvider(
		metric.WithReader(
			metric.NewPeriodicReader(metricExporter, metric.WithInterval(5*time.Second)),
		),
		metric.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		)),
	)
	return meterProvider, nil
}
