package task

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type stubMetricsSource struct {
	mu     sync.Mutex
	sample Metrics
	err    error
	calls  int
}

func (s *stubMetricsSource) Metrics(ctx context.Context) (Metrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return Metrics{}, s.err
	}
	return s.sample, nil
}

func (s *stubMetricsSource) set(sample Metrics, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sample = sample
	s.err = err
}

func (s *stubMetricsSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type capturePublisher struct {
	mu     sync.Mutex
	alerts []Alert
	err    error
}

func (p *capturePublisher) Publish(ctx context.Context, a Alert) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, a)
	return p.err
}

func (p *capturePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.alerts))
	for i, a := range p.alerts {
		out[i] = a.Type
	}
	return out
}

func testThresholds() Thresholds {
	return Thresholds{PendingTasks: 100, FailedTasks: 50, FailureRate: 0.1}
}

func TestMonitorCheckRaisesAlerts(t *testing.T) {
	tests := []struct {
		name   string
		sample Metrics
		want   []string
	}{
		{
			name:   "all healthy",
			sample: Metrics{PendingTasks: 10, FailedTasks: 5, TotalTasks: 200, FailureRate: 0.025},
			want:   nil,
		},
		{
			name:   "at thresholds is healthy",
			sample: Metrics{PendingTasks: 100, FailedTasks: 50, FailureRate: 0.1},
			want:   nil,
		},
		{
			name:   "pending over threshold",
			sample: Metrics{PendingTasks: 101},
			want:   []string{AlertHighPendingTasks},
		},
		{
			name:   "failed over threshold",
			sample: Metrics{FailedTasks: 51},
			want:   []string{AlertHighFailedTasks},
		},
		{
			name:   "rate over threshold",
			sample: Metrics{FailedTasks: 20, TotalTasks: 100, FailureRate: 0.2},
			want:   []string{AlertHighFailureRate},
		},
		{
			name:   "everything on fire",
			sample: Metrics{PendingTasks: 500, FailedTasks: 200, TotalTasks: 800, FailureRate: 0.25},
			want:   []string{AlertHighPendingTasks, AlertHighFailedTasks, AlertHighFailureRate},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &stubMetricsSource{sample: tt.sample}
			pub := &capturePublisher{}
			m := NewMonitor(source, time.Minute, testThresholds(), pub)

			if err := m.check(context.Background()); err != nil {
				t.Fatalf("check() error = %v", err)
			}

			got := pub.types()
			if len(got) != len(tt.want) {
				t.Fatalf("alerts = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("alerts = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestMonitorAlertCarriesValues(t *testing.T) {
	source := &stubMetricsSource{sample: Metrics{PendingTasks: 250}}
	pub := &capturePublisher{}
	m := NewMonitor(source, time.Minute, testThresholds(), pub)

	if err := m.check(context.Background()); err != nil {
		t.Fatalf("check() error = %v", err)
	}

	if len(pub.alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(pub.alerts))
	}
	a := pub.alerts[0]
	if a.Current != 250 {
		t.Errorf("alert current = %v, want 250", a.Current)
	}
	if a.Threshold != 100 {
		t.Errorf("alert threshold = %v, want 100", a.Threshold)
	}
	if a.Timestamp.IsZero() {
		t.Error("alert timestamp is zero")
	}
}

func TestMonitorCheckReturnsSamplingError(t *testing.T) {
	source := &stubMetricsSource{err: fmt.Errorf("db unreachable")}
	pub := &capturePublisher{}
	m := NewMonitor(source, time.Minute, testThresholds(), pub)

	if err := m.check(context.Background()); err == nil {
		t.Fatal("check() error = nil, want sampling failure")
	}
	if len(pub.types()) != 0 {
		t.Errorf("alerts raised on sampling failure: %v", pub.types())
	}
}

func TestMonitorSurvivesSamplingErrors(t *testing.T) {
	source := &stubMetricsSource{err: fmt.Errorf("db unreachable")}
	pub := &capturePublisher{}
	m := NewMonitor(source, 5*time.Millisecond, testThresholds(), pub)

	m.Start(context.Background())
	defer m.Stop()

	// The loop must keep sampling through repeated failures.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if source.callCount() >= 3 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := source.callCount(); got < 3 {
		t.Fatalf("source sampled %d times, want >= 3", got)
	}
	if got := pub.types(); len(got) != 0 {
		t.Fatalf("alerts raised while sampling failed: %v", got)
	}

	// And recover once the store is back.
	source.set(Metrics{PendingTasks: 999}, nil)

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(pub.types()) > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no alert raised after source recovered")
}

func TestMonitorPublisherErrorDoesNotStopFanout(t *testing.T) {
	source := &stubMetricsSource{sample: Metrics{PendingTasks: 500}}
	failing := &capturePublisher{err: fmt.Errorf("broker down")}
	healthy := &capturePublisher{}
	m := NewMonitor(source, time.Minute, testThresholds(), failing, healthy)

	if err := m.check(context.Background()); err != nil {
		t.Fatalf("check() error = %v", err)
	}
	if len(healthy.types()) != 1 {
		t.Errorf("healthy publisher received %d alerts, want 1", len(healthy.types()))
	}
}

func TestMonitorDefaults(t *testing.T) {
	m := NewMonitor(&stubMetricsSource{}, 0, Thresholds{})
	if m.interval != time.Minute {
		t.Errorf("default interval = %v, want %v", m.interval, time.Minute)
	}
	if m.thresholds.PendingTasks != 100 {
		t.Errorf("default pending threshold = %d, want 100", m.thresholds.PendingTasks)
	}
	if m.thresholds.FailedTasks != 50 {
		t.Errorf("default failed threshold = %d, want 50", m.thresholds.FailedTasks)
	}
	if m.thresholds.FailureRate != 0.1 {
		t.Errorf("default failure rate threshold = %v, want 0.1", m.thresholds.FailureRate)
	}
}
