package logging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestWithContextPopulatesServiceAndTime(t *testing.T) {
	l := New("test-service")
	e := l.WithContext(context.Background())

	if e.Service != "test-service" {
		t.Errorf("Service = %q, want test-service", e.Service)
	}
	if e.Time.IsZero() {
		t.Error("Time is zero")
	}
	// No active span means no trace correlation.
	if e.TraceID != "" {
		t.Errorf("TraceID = %q, want empty without a span", e.TraceID)
	}
}

func TestFluentSetters(t *testing.T) {
	e := New("svc").Plain().
		WithTask(42).
		WithTaskType("boleto.issue").
		WithBoleto(7).
		WithMessage(9).
		WithField("attempt", 2).
		WithFields(map[string]any{"reason": "timeout"})

	if e.TaskID != 42 {
		t.Errorf("TaskID = %d, want 42", e.TaskID)
	}
	if e.TaskType != "boleto.issue" {
		t.Errorf("TaskType = %q", e.TaskType)
	}
	if e.BoletoID != 7 || e.MessageID != 9 {
		t.Errorf("BoletoID/MessageID = %d/%d, want 7/9", e.BoletoID, e.MessageID)
	}
	if e.Fields["attempt"] != 2 {
		t.Errorf("Fields[attempt] = %v, want 2", e.Fields["attempt"])
	}
	if e.Fields["reason"] != "timeout" {
		t.Errorf("Fields[reason] = %v, want timeout", e.Fields["reason"])
	}
}

func TestWithError(t *testing.T) {
	e := New("svc").Plain().WithError(errors.New("boom"))
	if e.Fields["error"] != "boom" {
		t.Errorf("Fields[error] = %v, want boom", e.Fields["error"])
	}

	e = New("svc").Plain().WithError(nil)
	if _, ok := e.Fields["error"]; ok {
		t.Error("nil error produced an error field")
	}
}

func TestWithFieldOnBareEntry(t *testing.T) {
	// Entries built outside the constructors start with a nil map.
	e := &LogEntry{}
	e.WithField("k", "v")
	if e.Fields["k"] != "v" {
		t.Errorf("Fields[k] = %v, want v", e.Fields["k"])
	}
}

func TestEntryMarshalsWithStableKeys(t *testing.T) {
	e := New("svc").Plain().WithTask(42).WithField("reason", "timeout")
	e.Level = LevelWarn
	e.Message = "task scheduled for retry"

	raw, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal entry: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal entry: %v", err)
	}

	for _, key := range []string{"time", "level", "msg", "service", "task_id", "fields"} {
		if _, ok := out[key]; !ok {
			t.Errorf("marshalled entry missing %q: %s", key, raw)
		}
	}
	if out["level"] != "warn" {
		t.Errorf("level = %v, want warn", out["level"])
	}
	// Empty optional ids must not clutter the output.
	for _, key := range []string{"boleto_id", "message_id", "trace_id"} {
		if _, ok := out[key]; ok {
			t.Errorf("marshalled entry carries empty %q: %s", key, raw)
		}
	}
}
