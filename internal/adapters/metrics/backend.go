// Package metrics instruments the backend port with Prometheus collectors.
// Clean Architecture: Decorator implementing ports.Backend around another adapter.
package metrics

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/0xcro3dile/docqa-go/internal/domain/apierr"
	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

// Operation labels.
const (
	OpUpload = "upload"
	OpChat   = "chat"
	OpList   = "list_documents"
	OpHealth = "health"
)

// Metrics holds the client-side request collectors.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors on reg.
// Collectors already registered by an earlier call are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docqa",
		Subsystem: "client",
		Name:      "requests_total",
		Help:      "Backend requests by operation and outcome.",
	}, []string{"operation", "outcome"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "docqa",
		Subsystem: "client",
		Name:      "request_duration_seconds",
		Help:      "Backend request latency by operation.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"operation"})

	var err error
	if requests, err = register(reg, requests); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	return &Metrics{requests: requests, duration: duration}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) observe(op string, start time.Time, outcome string) {
	m.requests.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// outcomeOf labels an error by its normalized kind.
func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	if k := apierr.KindOf(err); k != 0 {
		return k.String()
	}
	return "error"
}

// Backend wraps a ports.Backend and records every call.
type Backend struct {
	next    ports.Backend
	metrics *Metrics
}

// Instrument returns next wrapped with m.
func Instrument(next ports.Backend, m *Metrics) *Backend {
	return &Backend{next: next, metrics: m}
}

// UploadDocument delegates and records the outcome.
func (b *Backend) UploadDocument(ctx context.Context, file io.Reader, filename, mimeType string) (*entities.UploadResult, error) {
	start := time.Now()
	res, err := b.next.UploadDocument(ctx, file, filename, mimeType)
	b.metrics.observe(OpUpload, start, outcomeOf(err))
	return res, err
}

// SendChatMessage delegates; replies carrying an error are labelled "application".
func (b *Backend) SendChatMessage(ctx context.Context, question string) (*entities.ChatReply, error) {
	start := time.Now()
	reply, err := b.next.SendChatMessage(ctx, question)
	outcome := outcomeOf(err)
	if err == nil && reply.HasError() {
		outcome = apierr.Application.String()
	}
	b.metrics.observe(OpChat, start, outcome)
	return reply, err
}

// ListUploadedDocuments delegates and records the outcome.
func (b *Backend) ListUploadedDocuments(ctx context.Context) ([]string, error) {
	start := time.Now()
	names, err := b.next.ListUploadedDocuments(ctx)
	b.metrics.observe(OpList, start, outcomeOf(err))
	return names, err
}

// CheckHealth delegates and records "up" or "down".
func (b *Backend) CheckHealth(ctx context.Context) bool {
	start := time.Now()
	up := b.next.CheckHealth(ctx)
	outcome := "down"
	if up {
		outcome = "up"
	}
	b.metrics.observe(OpHealth, start, outcome)
	return up
}
