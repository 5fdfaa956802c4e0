package alerting

import (
	"context"
	"testing"
	"time"

	"github.com/agilefinance/boletoflow/internal/task"
)

func TestLogPublisherNeverFails(t *testing.T) {
	p := NewLogPublisher()
	err := p.Publish(context.Background(), task.Alert{
		Type:      task.AlertHighPendingTasks,
		Timestamp: time.Now().UTC(),
		Current:   250,
		Threshold: 100,
	})
	if err != nil {
		t.Errorf("Publish() error = %v, want nil", err)
	}
}
