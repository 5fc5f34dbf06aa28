package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	attendanceMarks  metric.Int64Counter
	daysConsumed     metric.Int64Counter
	paymentsApplied  metric.Int64Counter
	periodsCreated   metric.Int64Counter
	periodsExhausted metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "centerledger"
	}
	meter := provider.Meter(name)

	attendanceMarks, err := meter.Int64Counter("centerledger_attendance_marks_total")
	if err != nil {
		return nil, err
	}
	daysConsumed, err := meter.Int64Counter("centerledger_subscription_days_consumed_total")
	if err != nil {
		return nil, err
	}
	paymentsApplied, err := meter.Int64Counter("centerledger_payments_applied_total")
	if err != nil {
		return nil, err
	}
	periodsCreated, err := meter.Int64Counter("centerledger_subscription_periods_created_total")
	if err != nil {
		return nil, err
	}
	periodsExhausted, err := meter.Int64Counter("centerledger_subscription_periods_exhausted_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		attendanceMarks:  attendanceMarks,
		daysConsumed:     daysConsumed,
		paymentsApplied:  paymentsApplied,
		periodsCreated:   periodsCreated,
		periodsExhausted: periodsExhausted,
	}, nil
}

// RecordAttendanceMark increments attendance mark counts.
func (m *Metrics) RecordAttendanceMark(ctx context.Context, centerID string, present bool) {
	if m == nil {
		return
	}
	status := "absent"
	if present {
		status = "present"
	}
	attrs := FilterAttributes(
		attribute.String("center_id", strings.TrimSpace(centerID)),
		attribute.String("mark_status", status),
	)
	m.attendanceMarks.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDayConsumed increments day consumption counts.
func (m *Metrics) RecordDayConsumed(ctx context.Context, centerID string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("center_id", strings.TrimSpace(centerID)))
	m.daysConsumed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPaymentApplied increments applied payment counts.
func (m *Metrics) RecordPaymentApplied(ctx context.Context, centerID, source string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("center_id", strings.TrimSpace(centerID)),
		attribute.String("source", strings.TrimSpace(source)),
	)
	m.paymentsApplied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPeriodCreated increments period creation counts.
func (m *Metrics) RecordPeriodCreated(ctx context.Context, centerID string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("center_id", strings.TrimSpace(centerID)))
	m.periodsCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPeriodExhausted increments period exhaustion counts.
func (m *Metrics) RecordPeriodExhausted(ctx context.Context, centerID string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("center_id", strings.TrimSpace(centerID)))
	m.periodsExhausted.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"center_id":   {},
	"mark_status": {},
	"source":      {},
	"endpoint":    {},
	"status_code": {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
