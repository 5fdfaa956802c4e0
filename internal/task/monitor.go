package task

import (
	"context"
	"sync"
	"time"

	"github.com/agilefinance/boletoflow/internal/logging"
	"github.com/agilefinance/boletoflow/internal/metrics"
)

// Alert names raised by the monitor.
const (
	AlertHighPendingTasks = "high_pending_tasks"
	AlertHighFailedTasks  = "high_failed_tasks"
	AlertHighFailureRate  = "high_failure_rate"
)

// Alert is a threshold crossing observed by the monitor.
type Alert struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Current   float64   `json:"current"`
	Threshold float64   `json:"threshold"`
}

// AlertPublisher receives alerts raised by the monitor. Publishers must not
// block; a slow sink delays only the monitor loop, never the scheduler.
type AlertPublisher interface {
	Publish(ctx context.Context, a Alert) error
}

// Thresholds configure when the monitor raises alerts.
type Thresholds struct {
	PendingTasks int64
	FailedTasks  int64
	FailureRate  float64
}

// MetricsSource is the slice of Store the monitor needs.
type MetricsSource interface {
	Metrics(ctx context.Context) (Metrics, error)
}

// Monitor samples queue metrics on its own interval and raises named alerts
// through the registered publishers. Sampling failures are logged and the
// loop keeps going; the monitor never crashes or blocks task processing.
type Monitor struct {
	source     MetricsSource
	interval   time.Duration
	thresholds Thresholds
	publishers []AlertPublisher
	log        *logging.Logger

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
}

func NewMonitor(source MetricsSource, interval time.Duration, thresholds Thresholds, publishers ...AlertPublisher) *Monitor {
	if interval <= 0 {
		interval = time.Minute
	}
	if thresholds.PendingTasks <= 0 {
		thresholds.PendingTasks = 100
	}
	if thresholds.FailedTasks <= 0 {
		thresholds.FailedTasks = 50
	}
	if thresholds.FailureRate <= 0 {
		thresholds.FailureRate = 0.1
	}
	return &Monitor{
		source:     source,
		interval:   interval,
		thresholds: thresholds,
		publishers: publishers,
		log:        logging.New("boletoflow-monitor"),
	}
}

func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		m.log.Plain().Warn("monitor already running")
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	m.running = true

	m.log.Plain().WithFields(map[string]any{
		"interval":      m.interval.String(),
		"pending_limit": m.thresholds.PendingTasks,
		"failed_limit":  m.thresholds.FailedTasks,
		"failure_rate":  m.thresholds.FailureRate,
	}).Info("monitor started")

	go m.loop(ctx)
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if err := m.check(ctx); err != nil {
			m.log.WithContext(ctx).WithError(err).Error("metrics check failed")
		}

		select {
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	close(m.stop)
	<-m.done
	m.running = false
	m.log.Plain().Info("monitor stopped")
}

func (m *Monitor) check(ctx context.Context) error {
	sample, err := m.source.Metrics(ctx)
	if err != nil {
		return err
	}

	metrics.UpdateQueueGauges(
		float64(sample.PendingTasks),
		float64(sample.FailedTasks),
		sample.FailureRate,
	)

	if sample.PendingTasks > m.thresholds.PendingTasks {
		m.raise(ctx, Alert{
			Type:      AlertHighPendingTasks,
			Timestamp: time.Now().UTC(),
			Current:   float64(sample.PendingTasks),
			Threshold: float64(m.thresholds.PendingTasks),
		})
	}
	if sample.FailedTasks > m.thresholds.FailedTasks {
		m.raise(ctx, Alert{
			Type:      AlertHighFailedTasks,
			Timestamp: time.Now().UTC(),
			Current:   float64(sample.FailedTasks),
			Threshold: float64(m.thresholds.FailedTasks),
		})
	}
	if sample.FailureRate > m.thresholds.FailureRate {
		m.raise(ctx, Alert{
			Type:      AlertHighFailureRate,
			Timestamp: time.Now().UTC(),
			Current:   sample.FailureRate,
			Threshold: m.thresholds.FailureRate,
		})
	}

	m.log.WithContext(ctx).WithFields(map[string]any{
		"pending": sample.PendingTasks,
		"failed":  sample.FailedTasks,
		"total":   sample.TotalTasks,
		"rate":    sample.FailureRate,
	}).Debug("metrics sampled")
	return nil
}

func (m *Monitor) raise(ctx context.Context, a Alert) {
	metrics.RecordAlert(a.Type)
	m.log.WithContext(ctx).WithFields(map[string]any{
		"alert":     a.Type,
		"current":   a.Current,
		"threshold": a.Threshold,
	}).Warn("task queue alert")

	for _, p := range m.publishers {
		if err := p.Publish(ctx, a); err != nil {
			m.log.WithContext(ctx).WithField("alert", a.Type).WithError(err).Error("alert publish failed")
		}
	}
}
