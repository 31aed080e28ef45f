package observability

import (
	"context"
	"testing"

	"stakehouse/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsProvider_NilIsNoop(t *testing.T) {
	var mp *MetricsProvider

	assert.NotPanics(t, func() {
		mp.RecordStakeUpsert()
		mp.RecordSettlement(SettlementTypeImmediate, decimal.NewFromInt(10))
		mp.RecordInviteResponse(InviteResponseAccepted)
		mp.RecordReconciliation(OutcomeSynced, 2)
		mp.RecordNATSMessagePublished("stake.upserted")
		mp.RecordNATSMessageReceived("sessions.finalized")
	})
}

func TestMetricsProvider_Disabled(t *testing.T) {
	mp := NewMetricsProvider(config.NewTestConfig())
	require.NoError(t, mp.Initialize(context.Background()))
	assert.False(t, mp.isEnabled())

	assert.NotPanics(t, func() { mp.RecordStakeUpsert() })
	require.NoError(t, mp.Shutdown(context.Background()))
}

func TestMetricsProvider_EnabledWithoutExporter(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.OTelEnabled = true
	cfg.OTelExporterType = "none"

	mp := NewMetricsProvider(cfg)
	require.NoError(t, mp.Initialize(context.Background()))
	assert.False(t, mp.isEnabled())
	assert.NotPanics(t, func() { mp.RecordReconciliation(OutcomePending, 1) })
}

func TestMetricsProvider_Console(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.OTelEnabled = true
	cfg.OTelExporterType = "console"

	mp := NewMetricsProvider(cfg)
	require.NoError(t, mp.Initialize(context.Background()))
	assert.True(t, mp.isEnabled())

	mp.RecordStakeUpsert()
	mp.RecordSettlement(SettlementTypeConfirmed, decimal.RequireFromString("-41.25"))
	mp.RecordInviteResponse(InviteResponseDeclined)

	require.NoError(t, mp.Shutdown(context.Background()))
}

func TestMetricsProvider_UnknownExporter(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.OTelEnabled = true
	cfg.OTelExporterType = "zipkin"

	mp := NewMetricsProvider(cfg)
	assert.Error(t, mp.Initialize(context.Background()))
}
