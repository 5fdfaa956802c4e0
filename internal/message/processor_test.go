package message

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/agilefinance/boletoflow/internal/provider"
	"github.com/agilefinance/boletoflow/internal/task"
)

type fakeRepository struct {
	mu       sync.Mutex
	messages map[int64]*Message
	failErr  error
}

func newFakeRepository(messages ...*Message) *fakeRepository {
	r := &fakeRepository{messages: make(map[int64]*Message)}
	for _, m := range messages {
		r.messages[m.ID] = m
	}
	return r
}

func (r *fakeRepository) FindByID(ctx context.Context, id int64) (*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *m
	return &c, nil
}

func (r *fakeRepository) MarkSent(ctx context.Context, id int64, externalID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok || m.Status != StatusPending {
		return false, nil
	}
	m.Status = StatusSent
	m.ExternalID = externalID
	return true, nil
}

func (r *fakeRepository) MarkFailed(ctx context.Context, id int64, errMsg string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return false, r.failErr
	}
	m, ok := r.messages[id]
	if !ok || m.Status != StatusPending {
		return false, nil
	}
	m.Status = StatusFailed
	m.ErrorMessage = errMsg
	return true, nil
}

type fakeSender struct {
	mu          sync.Mutex
	sendCalls   int
	lastRequest provider.MessageRequest
	result      provider.MessageResult
	err         error
}

func (f *fakeSender) IssueBoleto(ctx context.Context, req provider.IssueRequest) (*provider.IssueResult, error) {
	return nil, fmt.Errorf("not used in message tests")
}

func (f *fakeSender) SendMessage(ctx context.Context, req provider.MessageRequest) (*provider.MessageResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++
	f.lastRequest = req
	if f.err != nil {
		return nil, f.err
	}
	res := f.result
	return &res, nil
}

func (f *fakeSender) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sendCalls
}

func pendingMessage(id int64) *Message {
	return &Message{
		ID:        id,
		Channel:   ChannelWhatsApp,
		Recipient: "+5511999990000",
		Body:      "Seu boleto vence amanhã.",
		Status:    StatusPending,
	}
}

func sendTask(t *testing.T, messageID int64, channel string) *task.Task {
	t.Helper()
	payload, err := json.Marshal(task.MessagePayload{MessageID: messageID, Channel: channel})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &task.Task{ID: 1, Type: task.TypeMessageSend, Payload: payload, MaxRetries: 3}
}

func TestProcessSendsMessage(t *testing.T) {
	repo := newFakeRepository(pendingMessage(7))
	sender := &fakeSender{result: provider.MessageResult{ExternalID: "wamid.123"}}
	p := NewProcessor(repo, sender)

	result, err := p.Process(context.Background(), sendTask(t, 7, ""))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	repo.mu.Lock()
	m := repo.messages[7]
	repo.mu.Unlock()
	if m.Status != StatusSent {
		t.Errorf("message status = %q, want %q", m.Status, StatusSent)
	}
	if m.ExternalID != "wamid.123" {
		t.Errorf("message external id = %q, want %q", m.ExternalID, "wamid.123")
	}

	var out map[string]string
	if err := json.Unmarshal(result, &out); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if out["external_id"] != "wamid.123" {
		t.Errorf("result = %v, want external_id wamid.123", out)
	}
	if sender.lastRequest.Recipient != "+5511999990000" {
		t.Errorf("request recipient = %q", sender.lastRequest.Recipient)
	}
}

func TestProcessPayloadChannelOverridesMessage(t *testing.T) {
	repo := newFakeRepository(pendingMessage(7))
	sender := &fakeSender{}
	p := NewProcessor(repo, sender)

	if _, err := p.Process(context.Background(), sendTask(t, 7, ChannelEmail)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if sender.lastRequest.Channel != ChannelEmail {
		t.Errorf("request channel = %q, want %q", sender.lastRequest.Channel, ChannelEmail)
	}
}

func TestProcessRejectsUnknownChannel(t *testing.T) {
	repo := newFakeRepository(pendingMessage(7))
	sender := &fakeSender{}
	p := NewProcessor(repo, sender)

	_, err := p.Process(context.Background(), sendTask(t, 7, "carrier-pigeon"))

	var procErr *task.ProcessingError
	if !errors.As(err, &procErr) {
		t.Fatalf("Process() error = %v, want *task.ProcessingError", err)
	}
	if sender.calls() != 0 {
		t.Errorf("provider called for unknown channel, calls = %d", sender.calls())
	}
}

func TestProcessSkipsNonPendingMessage(t *testing.T) {
	for _, status := range []string{StatusSent, StatusFailed} {
		t.Run(status, func(t *testing.T) {
			m := pendingMessage(7)
			m.Status = status
			repo := newFakeRepository(m)
			sender := &fakeSender{}
			p := NewProcessor(repo, sender)

			result, err := p.Process(context.Background(), sendTask(t, 7, ""))
			if err != nil {
				t.Fatalf("Process() error = %v, want no-op success", err)
			}
			if sender.calls() != 0 {
				t.Errorf("provider called for %s message, calls = %d", status, sender.calls())
			}

			var out map[string]any
			if uerr := json.Unmarshal(result, &out); uerr != nil {
				t.Fatalf("unmarshal result: %v", uerr)
			}
			if out["skipped"] != true {
				t.Errorf("result = %v, want skipped=true", out)
			}
		})
	}
}

func TestProcessProviderFailureMarksMessageFailed(t *testing.T) {
	repo := newFakeRepository(pendingMessage(7))
	provErr := fmt.Errorf("connection refused")
	p := NewProcessor(repo, &fakeSender{err: provErr})

	_, err := p.Process(context.Background(), sendTask(t, 7, ""))
	if !errors.Is(err, provErr) {
		t.Fatalf("Process() error = %v, want provider error to propagate", err)
	}

	repo.mu.Lock()
	m := repo.messages[7]
	repo.mu.Unlock()
	if m.Status != StatusFailed {
		t.Errorf("message status = %q, want %q", m.Status, StatusFailed)
	}
	if m.ErrorMessage == "" {
		t.Error("message error text not recorded")
	}
}

func TestProcessFailureWriteErrorKeepsOriginalError(t *testing.T) {
	repo := newFakeRepository(pendingMessage(7))
	repo.failErr = fmt.Errorf("db down")
	provErr := fmt.Errorf("provider exploded")
	p := NewProcessor(repo, &fakeSender{err: provErr})

	_, err := p.Process(context.Background(), sendTask(t, 7, ""))
	if !errors.Is(err, provErr) {
		t.Errorf("Process() error = %v, want original provider error", err)
	}
}

func TestProcessMissingMessageIsPrecondition(t *testing.T) {
	p := NewProcessor(newFakeRepository(), &fakeSender{})

	_, err := p.Process(context.Background(), sendTask(t, 999, ""))

	var procErr *task.ProcessingError
	if !errors.As(err, &procErr) {
		t.Fatalf("Process() error = %v, want *task.ProcessingError", err)
	}
}

func TestKnownChannel(t *testing.T) {
	for _, c := range []string{ChannelEmail, ChannelWhatsApp, ChannelSMS} {
		if !KnownChannel(c) {
			t.Errorf("KnownChannel(%q) = false, want true", c)
		}
	}
	for _, c := range []string{"", "fax", "EMAIL"} {
		if KnownChannel(c) {
			t.Errorf("KnownChannel(%q) = true, want false", c)
		}
	}
}
