package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	CompletionAttemptsTotal     metric.Int64Counter
	CompletionDurationSeconds   metric.Float64Histogram
	ItineraryGenerationsTotal   metric.Int64Counter
	ItineraryGenerationDuration metric.Float64Histogram
	ItineraryParseFailuresTotal metric.Int64Counter
	DbQueryErrorsTotal          metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics creates the instruments once from the global MeterProvider.
// Call it after the provider is installed so the instruments are exported.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("ItineraryAI")
		var err error
		m := &AppMetrics{}

		m.CompletionAttemptsTotal, err = meter.Int64Counter(
			"completion_attempts_total",
			metric.WithDescription("Total number of completion provider calls, one per attempt"),
			metric.WithUnit("{attempt}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create completion_attempts_total: %v", err)
		}

		m.CompletionDurationSeconds, err = meter.Float64Histogram(
			"completion_duration_seconds",
			metric.WithDescription("Duration of a single completion attempt in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create completion_duration_seconds: %v", err)
		}

		m.ItineraryGenerationsTotal, err = meter.Int64Counter(
			"itinerary_generations_total",
			metric.WithDescription("Total number of itinerary generations by outcome"),
			metric.WithUnit("{generation}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create itinerary_generations_total: %v", err)
		}

		m.ItineraryGenerationDuration, err = meter.Float64Histogram(
			"itinerary_generation_duration_seconds",
			metric.WithDescription("End to end duration of an itinerary generation in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create itinerary_generation_duration_seconds: %v", err)
		}

		m.ItineraryParseFailuresTotal, err = meter.Int64Counter(
			"itinerary_parse_failures_total",
			metric.WithDescription("Total number of model responses rejected by the parser"),
			metric.WithUnit("{failure}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create itinerary_parse_failures_total: %v", err)
		}

		m.DbQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_errors_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the instruments, creating them against the current global
// provider on first use.
func Get() *AppMetrics {
	// once.Do orders the write inside InitAppMetrics before this read
	InitAppMetrics()
	return appMetrics
}
