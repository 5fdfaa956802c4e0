// Package alerting delivers monitor alerts to their sinks. The log sink is
// always wired; the NSQ sink is optional and lets downstream consumers
// (paging, dashboards) react without polling the database.
package alerting

import (
	"context"
	"encoding/json"

	"github.com/nsqio/go-nsq"

	"github.com/agilefinance/boletoflow/internal/logging"
	"github.com/agilefinance/boletoflow/internal/task"
)

// LogPublisher writes alerts to the structured log.
type LogPublisher struct {
	log *logging.Logger
}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{log: logging.New("boletoflow-alerts")}
}

func (p *LogPublisher) Publish(ctx context.Context, a task.Alert) error {
	p.log.WithContext(ctx).WithFields(map[string]any{
		"alert":     a.Type,
		"current":   a.Current,
		"threshold": a.Threshold,
	}).Warn("queue alert")
	return nil
}

// NSQPublisher publishes alerts to an NSQ topic as JSON envelopes.
type NSQPublisher struct {
	producer *nsq.Producer
	topic    string
}

func NewNSQPublisher(nsqdAddr, topic string) (*NSQPublisher, error) {
	producer, err := nsq.NewProducer(nsqdAddr, nsq.NewConfig())
	if err != nil {
		return nil, err
	}
	return &NSQPublisher{producer: producer, topic: topic}, nil
}

func (p *NSQPublisher) Publish(ctx context.Context, a task.Alert) error {
	body, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return p.producer.Publish(p.topic, body)
}

// Stop releases the underlying producer connection.
func (p *NSQPublisher) Stop() {
	p.producer.Stop()
}
