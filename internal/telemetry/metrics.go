package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// Metrics holds the channel instruments. A nil *Metrics records nothing.
type Metrics struct {
	actions       metric.Int64Counter
	duration      metric.Float64Histogram
	notifications metric.Int64Counter
	history       metric.Int64Gauge
	subscribers   metric.Int64Gauge
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	actions, err := meter.Int64Counter("channel.actions",
		metric.WithDescription("Channel actions processed, by kind and outcome"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("channel.action.duration",
		metric.WithDescription("Time spent processing one action"), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	notifications, err := meter.Int64Counter("channel.notifications",
		metric.WithDescription("Post notifications handed to the transport, by result"))
	if err != nil {
		return nil, err
	}
	history, err := meter.Int64Gauge("channel.history.length",
		metric.WithDescription("Posts currently retained"))
	if err != nil {
		return nil, err
	}
	subscribers, err := meter.Int64Gauge("channel.subscribers",
		metric.WithDescription("Current subscriber count"))
	if err != nil {
		return nil, err
	}
	return &Metrics{
		actions:       actions,
		duration:      duration,
		notifications: notifications,
		history:       history,
		subscribers:   subscribers,
	}, nil
}

func (m *Metrics) RecordAction(ctx context.Context, kind, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("action", kind), attribute.String("outcome", outcome))
	m.actions.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(took)/float64(time.Millisecond), attrs)
}

func (m *Metrics) RecordNotifications(ctx context.Context, sent, failed int) {
	if m == nil {
		return
	}
	if sent > 0 {
		m.notifications.Add(ctx, int64(sent), metric.WithAttributes(attribute.String("result", "sent")))
	}
	if failed > 0 {
		m.notifications.Add(ctx, int64(failed), metric.WithAttributes(attribute.String("result", "failed")))
	}
}

func (m *Metrics) RecordState(ctx context.Context, historyLen, subscribers int) {
	if m == nil {
		return
	}
	m.history.Record(ctx, int64(historyLen))
	m.subscribers.Record(ctx, int64(subscribers))
}
