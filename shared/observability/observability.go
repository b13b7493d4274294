package observability

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// SetupTracing initializes OpenTelemetry tracing with stdout exporter (for demo; replace with OTLP in prod)
func SetupTracing(serviceName string) func() {
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		log.Fatalf("failed to initialize stdouttrace exporter: %v", err)
	}
	res, _ := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	provider := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return func() { _ = provider.Shutdown(nil) }
}

// SetupPrometheusMetrics initializes Prometheus metrics exporter and exposes /metrics endpoint
func SetupPrometheusMetrics() *metric.MeterProvider {
	exp, err := prometheus.New()
	if err != nil {
		log.Fatalf("failed to initialize prometheus exporter: %v", err)
	}
	mp := metric.NewMeterProvider(metric.WithReader(exp))
	otel.SetMeterProvider(mp)
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		_ = http.ListenAndServe(":2112", nil)
	}()
	return mp
}

// Metrics bundles the counters the messaging core reports.
type Metrics struct {
	MessagesSent      otelmetric.Int64Counter
	UploadAttempts    otelmetric.Int64Counter
	UploadFallbacks   otelmetric.Int64Counter
	UploadExhaustions otelmetric.Int64Counter
	MetadataFailures  otelmetric.Int64Counter
	ReactionToggles   otelmetric.Int64Counter
}

// NewMetrics registers the core's counters on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("chat-messaging-demo/backend")

	m := &Metrics{}
	var err error

	if m.MessagesSent, err = meter.Int64Counter("chat_messages_sent_total"); err != nil {
		return nil, err
	}
	if m.UploadAttempts, err = meter.Int64Counter("chat_upload_attempts_total"); err != nil {
		return nil, err
	}
	if m.UploadFallbacks, err = meter.Int64Counter("chat_upload_fallbacks_total"); err != nil {
		return nil, err
	}
	if m.UploadExhaustions, err = meter.Int64Counter("chat_upload_exhaustions_total"); err != nil {
		return nil, err
	}
	if m.MetadataFailures, err = meter.Int64Counter("chat_metadata_write_failures_total"); err != nil {
		return nil, err
	}
	if m.ReactionToggles, err = meter.Int64Counter("chat_reaction_toggles_total"); err != nil {
		return nil, err
	}

	return m, nil
}
