// Package telemetry provides OpenTelemetry instrumentation for the
// publishing server.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SyncMetricsMeterName is the name used for the sync metrics meter
const SyncMetricsMeterName = "github.com/inkwell-sh/inkwell/sync"

// SyncMetrics holds the OpenTelemetry instruments for reconciliation
// metrics
type SyncMetrics struct {
	syncDuration metric.Float64Histogram
	itemsSynced  metric.Int64Counter
	siteItems    metric.Int64Gauge
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter
// provider. If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	syncDuration, err := meter.Float64Histogram(
		"inkwell_sync_duration_seconds",
		metric.WithDescription("Duration of reconciliation runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	itemsSynced, err := meter.Int64Counter(
		"inkwell_sync_items_total",
		metric.WithDescription("Items processed by reconciliation runs"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}

	siteItems, err := meter.Int64Gauge(
		"inkwell_site_items",
		metric.WithDescription("Number of items in a site manifest"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		syncDuration: syncDuration,
		itemsSynced:  itemsSynced,
		siteItems:    siteItems,
	}, nil
}

// RecordSyncDuration records the duration of one reconciliation run.
func (m *SyncMetrics) RecordSyncDuration(ctx context.Context, siteID string, duration time.Duration, success bool) {
	if m == nil || m.syncDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("site", siteID),
		attribute.Bool("success", success),
	}

	m.syncDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordItemsSynced counts items a reconciliation touched, by outcome.
func (m *SyncMetrics) RecordItemsSynced(ctx context.Context, siteID, outcome string, count int64) {
	if m == nil || m.itemsSynced == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("site", siteID),
		attribute.String("outcome", outcome),
	}

	m.itemsSynced.Add(ctx, count, metric.WithAttributes(attrs...))
}

// RecordSiteItems records the manifest size after a committed
// reconciliation.
func (m *SyncMetrics) RecordSiteItems(ctx context.Context, siteID string, count int64) {
	if m == nil || m.siteItems == nil {
		return
	}

	m.siteItems.Record(ctx, count, metric.WithAttributes(attribute.String("site", siteID)))
}
