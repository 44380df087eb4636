package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},  // capped at 30s
		{10, 30 * time.Second}, // capped at 30s
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			result := exponentialBackoff(tt.attempt)
			if result != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, result, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("connection refused"), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("broken pipe"), true},
		{"closed network connection", errors.New("use of closed network connection"), true},
		{"other error", errors.New("some other error"), false},
		{"validation error", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestClient_CircuitBreaker(t *testing.T) {
	client := &Client{exchangeName: "test_exchange", queueName: "test_queue"}

	if client.isCircuitOpen() {
		t.Fatal("circuit breaker should be closed initially")
	}

	for i := 0; i < maxFailures; i++ {
		client.recordFailure()
	}
	if !client.isCircuitOpen() {
		t.Fatal("circuit breaker should be open after max failures")
	}

	client.recordSuccess()
	if client.isCircuitOpen() {
		t.Fatal("circuit breaker should close after a success")
	}
	if atomic.LoadInt64(&client.failureCount) != 0 {
		t.Error("failure count should reset after a success")
	}

	atomic.StoreInt32(&client.state, StateOpen)
	client.lastFailure = time.Now().Add(-openTimeout - time.Second)
	if client.isCircuitOpen() {
		t.Error("circuit should half-open after the timeout")
	}
	if atomic.LoadInt32(&client.state) != StateHalfOpen {
		t.Error("state should be StateHalfOpen after the timeout")
	}
}

func TestClient_PublishDirtyGuards(t *testing.T) {
	client := &Client{exchangeName: "test_exchange", queueName: "test_queue"}
	msg := NewDirtyRowMessage("transactions", "tx-1", "user-1")

	t.Run("open circuit", func(t *testing.T) {
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure = time.Now()

		err := client.PublishDirty(context.Background(), msg)
		if !errors.Is(err, ErrCircuitOpen) {
			t.Errorf("expected ErrCircuitOpen, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		client.recordSuccess()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := client.PublishDirty(ctx, msg); err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("no channel", func(t *testing.T) {
		client.recordSuccess()
		err := client.PublishDirty(context.Background(), msg)
		if err == nil || !strings.Contains(err.Error(), "channel not open") {
			t.Errorf("expected channel error, got %v", err)
		}
	})
}

func TestDirtyRowMessage_JSON(t *testing.T) {
	msg := NewDirtyRowMessage("accounts", "acc-1", "user-1")
	if msg.AnnouncedAt.IsZero() {
		t.Fatal("AnnouncedAt should be set")
	}

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	if !strings.Contains(string(data), `"user_id":"user-1"`) {
		t.Errorf("unexpected payload %s", data)
	}

	parsed, err := DirtyRowMessageFromJSON(data)
	if err != nil {
		t.Fatalf("DirtyRowMessageFromJSON() error = %v", err)
	}
	if parsed.Table != "accounts" || parsed.ID != "acc-1" {
		t.Errorf("parsed = %+v", parsed)
	}
}

func TestSyncAckFromJSON(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"valid", `{"table":"goals","user_id":"u","ids":["g1","g2"]}`, false},
		{"missing ids", `{"table":"goals","user_id":"u","ids":[]}`, true},
		{"missing user", `{"table":"goals","ids":["g1"]}`, true},
		{"not json", `nope`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack, err := SyncAckFromJSON([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(ack.IDs) != 2 {
				t.Errorf("ids = %v", ack.IDs)
			}
		})
	}
}
