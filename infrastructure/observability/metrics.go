package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stakehouse/config"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

// MetricsProvider manages OpenTelemetry metrics for the stakehouse service
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	mu            sync.RWMutex

	// Metric instruments
	stakeUpsertsCounter          metric.Int64Counter
	stakeSettlementsCounter      metric.Int64Counter
	settlementAmountHist         metric.Float64Histogram
	inviteResponsesCounter       metric.Int64Counter
	reconciliationsCounter       metric.Int64Counter
	conflictsCounter             metric.Int64Counter
	natsMessagesReceivedCounter  metric.Int64Counter
	natsMessagesPublishedCounter metric.Int64Counter
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Info("Metrics provider already initialized")
		return nil
	}

	if !mp.config.OTelEnabled {
		log.Info("OpenTelemetry metrics disabled")
		mp.initialized = true
		return nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdkmetric.Exporter
	switch mp.config.OTelExporterType {
	case "console":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Info("Using console metric exporter")

	case "otlp":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.WithField("endpoint", mp.config.OTelOTLPEndpoint).Info("Using OTLP metric exporter")

	case "none":
		log.Info("Metrics export disabled (exporter_type='none')")
		mp.initialized = true
		return nil

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				exporter,
				sdkmetric.WithInterval(time.Duration(mp.config.OTelExportIntervalMillis)*time.Millisecond),
			),
		),
	)

	otel.SetMeterProvider(mp.meterProvider)
	mp.meter = mp.meterProvider.Meter("stakehouse")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	log.Info("Metrics provider initialized successfully")
	return nil
}

// createInstruments creates all metric instruments
func (mp *MetricsProvider) createInstruments() error {
	var err error

	mp.stakeUpsertsCounter, err = mp.meter.Int64Counter(
		StakeUpsertsTotal,
		metric.WithDescription("Total number of stake agreement upserts"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create stake upserts counter: %w", err)
	}

	mp.stakeSettlementsCounter, err = mp.meter.Int64Counter(
		StakeSettlementsTotal,
		metric.WithDescription("Total number of settled stake agreements"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create stake settlements counter: %w", err)
	}

	mp.settlementAmountHist, err = mp.meter.Float64Histogram(
		StakeSettlementAmount,
		metric.WithDescription("Absolute settlement amounts owed between player and staker"),
		metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(1, 10, 50, 100, 500, 1000, 5000, 10000),
	)
	if err != nil {
		return fmt.Errorf("failed to create settlement amount histogram: %w", err)
	}

	mp.inviteResponsesCounter, err = mp.meter.Int64Counter(
		InviteResponsesTotal,
		metric.WithDescription("Total number of answered staking invites"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create invite responses counter: %w", err)
	}

	mp.reconciliationsCounter, err = mp.meter.Int64Counter(
		ReconciliationsTotal,
		metric.WithDescription("Total number of reconciliation passes"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create reconciliations counter: %w", err)
	}

	mp.conflictsCounter, err = mp.meter.Int64Counter(
		ConflictsTotal,
		metric.WithDescription("Total number of drafts flagged as conflicts"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create conflicts counter: %w", err)
	}

	mp.natsMessagesReceivedCounter, err = mp.meter.Int64Counter(
		NATSMessagesReceivedTotal,
		metric.WithDescription("Total number of NATS messages received"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create NATS messages received counter: %w", err)
	}

	mp.natsMessagesPublishedCounter, err = mp.meter.Int64Counter(
		NATSMessagesPublishedTotal,
		metric.WithDescription("Total number of NATS messages published"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create NATS messages published counter: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// RecordStakeUpsert records a stake agreement write
func (mp *MetricsProvider) RecordStakeUpsert() {
	if !mp.isEnabled() {
		return
	}

	mp.stakeUpsertsCounter.Add(context.Background(), 1)
}

// RecordSettlement records a settled agreement and the size of its settlement
func (mp *MetricsProvider) RecordSettlement(settlementType string, amount decimal.Decimal) {
	if !mp.isEnabled() {
		return
	}

	attrs := metric.WithAttributes(attribute.String(LabelType, settlementType))
	mp.stakeSettlementsCounter.Add(context.Background(), 1, attrs)
	mp.settlementAmountHist.Record(context.Background(), amount.Abs().InexactFloat64(), attrs)
}

// RecordInviteResponse records an answered invite
func (mp *MetricsProvider) RecordInviteResponse(response string) {
	if !mp.isEnabled() {
		return
	}

	mp.inviteResponsesCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelType, response),
		),
	)
}

// RecordReconciliation records a reconciliation pass and the conflicts it produced
func (mp *MetricsProvider) RecordReconciliation(outcome string, conflicts int) {
	if !mp.isEnabled() {
		return
	}

	mp.reconciliationsCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelOutcome, outcome),
		),
	)
	if conflicts > 0 {
		mp.conflictsCounter.Add(context.Background(), int64(conflicts))
	}
}

// RecordNATSMessageReceived records a NATS message being received
func (mp *MetricsProvider) RecordNATSMessageReceived(eventType string) {
	if !mp.isEnabled() {
		return
	}

	mp.natsMessagesReceivedCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelEventType, eventType),
		),
	)
}

// RecordNATSMessagePublished records a NATS message being published
func (mp *MetricsProvider) RecordNATSMessagePublished(eventType string) {
	if !mp.isEnabled() {
		return
	}

	mp.natsMessagesPublishedCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String(LabelEventType, eventType),
		),
	)
}

// isEnabled checks if metrics are enabled and instruments exist.
// Safe to call on a nil provider.
func (mp *MetricsProvider) isEnabled() bool {
	if mp == nil {
		return false
	}
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.config.OTelEnabled && mp.meter != nil
}

// Global metrics provider instance
var (
	globalMetrics *MetricsProvider
	metricsOnce   sync.Once
)

// InitializeGlobalMetrics initializes the global metrics provider
func InitializeGlobalMetrics(ctx context.Context, cfg *config.Config) error {
	var err error
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsProvider(cfg)
		err = globalMetrics.Initialize(ctx)
	})
	return err
}

// GetMetrics returns the global metrics provider. The result may be nil;
// recording on a nil provider is a no-op.
func GetMetrics() *MetricsProvider {
	return globalMetrics
}

// ShutdownGlobalMetrics shuts down the global metrics provider
func ShutdownGlobalMetrics(ctx context.Context) error {
	if globalMetrics != nil {
		return globalMetrics.Shutdown(ctx)
	}
	return nil
}
