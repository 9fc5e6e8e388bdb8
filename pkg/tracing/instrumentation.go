package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Database span attributes
const (
	DBSystemKey    = attribute.Key("db.system")
	DBOperationKey = attribute.Key("db.operation")
	DBTableKey     = attribute.Key("db.sql.table")
)

// Pricing span attributes
const (
	PricingConfigIDKey    = attribute.Key("pricing.config_id")
	PricingSourceKey      = attribute.Key("pricing.source")
	PricingDistanceKey    = attribute.Key("pricing.distance_km")
	PricingDistanceSrcKey = attribute.Key("pricing.distance_source")
	PricingPriceKey       = attribute.Key("pricing.price")
	PricingFallbackKey    = attribute.Key("pricing.fallback")
)

// TraceDB wraps a database operation in a client span.
func TraceDB(ctx context.Context, tracerName, operation, table string, fn func(context.Context) error) error {
	ctx, span := StartSpan(ctx, tracerName, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			DBSystemKey.String("postgresql"),
			DBOperationKey.String(operation),
			DBTableKey.String(table),
		),
	)
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// QuoteAttributes describes a priced request.
func QuoteAttributes(configID, source, distanceSource string, distance, price float64, fallback bool) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		PricingSourceKey.String(source),
		PricingPriceKey.Float64(price),
		PricingFallbackKey.Bool(fallback),
	}
	if configID != "" {
		attrs = append(attrs, PricingConfigIDKey.String(configID))
	}
	if distanceSource != "" {
		attrs = append(attrs,
			PricingDistanceKey.Float64(distance),
			PricingDistanceSrcKey.String(distanceSource),
		)
	}
	return attrs
}
