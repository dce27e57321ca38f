package mq

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/indicadores/apiserver/config"
)

func TestOpenDisabled(t *testing.T) {
	m, err := Open(context.Background(), config.MQConfig{})
	if err != nil || m != nil {
		t.Fatalf("Open() = %v, %v; want nil, nil", m, err)
	}
}

func TestOpenUnsupported(t *testing.T) {
	_, err := Open(context.Background(), config.MQConfig{Backend: "kafka"})
	if err == nil || !strings.Contains(err.Error(), "kafka") {
		t.Fatalf("Open() error = %v", err)
	}
}

func TestOpenRabbitMQRequiresURL(t *testing.T) {
	_, err := Open(context.Background(), config.MQConfig{Backend: "rabbitmq"})
	if err == nil || !strings.Contains(err.Error(), "url is required") {
		t.Fatalf("Open() error = %v", err)
	}
}

func TestMemoryPublishSubscribe(t *testing.T) {
	m, err := Open(context.Background(), config.MQConfig{Backend: "memory"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- m.Subscribe(ctx, "events", func(ctx context.Context, msg Message) error {
			got <- msg
			return nil
		})
	}()

	// Wait for the subscription to register.
	deadline := time.Now().Add(time.Second)
	for {
		mem := m.backend.(*Memory)
		mem.mu.RLock()
		n := len(mem.subs["events"])
		mem.mu.RUnlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	id, err := m.Publish(ctx, "events", []byte(`{"ok":true}`), map[string]string{"type": "test"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if _, err := m.Publish(ctx, "other", []byte("dropped"), nil); err != nil {
		t.Fatalf("Publish to idle channel: %v", err)
	}

	select {
	case msg := <-got:
		if msg.ID != id || string(msg.Data) != `{"ok":true}` || msg.Attributes["type"] != "test" {
			t.Fatalf("unexpected message %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Fatalf("Subscribe returned %v, want context.Canceled", err)
	}
}

func TestMemoryClosed(t *testing.T) {
	m := NewMemory()
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := m.Publish(context.Background(), "events", nil, nil); err == nil {
		t.Fatal("Publish after Close succeeded")
	}
	if err := m.Subscribe(context.Background(), "events", nil); err == nil {
		t.Fatal("Subscribe after Close succeeded")
	}
}

func TestNewPubSubMessage(t *testing.T) {
	attrs := map[string]string{"event_type": "calculation.created"}
	msg := newPubSubMessage([]byte(`{}`), attrs)

	if got := msg.Attributes[AttrContentType]; got != "application/json" {
		t.Errorf("content type = %q, want application/json", got)
	}
	if got := msg.Attributes["event_type"]; got != "calculation.created" {
		t.Errorf("event_type = %q", got)
	}
	if _, ok := attrs[AttrContentType]; ok {
		t.Error("caller attributes were modified")
	}

	msg = newPubSubMessage(nil, map[string]string{AttrContentType: "text/plain"})
	if got := msg.Attributes[AttrContentType]; got != "text/plain" {
		t.Errorf("explicit content type = %q, want text/plain", got)
	}
}

func TestOpenPubSubRequiresProject(t *testing.T) {
	_, err := Open(context.Background(), config.MQConfig{Backend: "pubsub"})
	if err == nil || !strings.Contains(err.Error(), "project id is required") {
		t.Fatalf("Open() error = %v", err)
	}
}
