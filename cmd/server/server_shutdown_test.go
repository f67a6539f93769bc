package server

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	appkafka "example.com/socialfeed/internal/broker"
	"example.com/socialfeed/internal/store"
)

// TestServer_GracefulShutdown verifies that Run serves requests and returns
// once its context is cancelled.
func TestServer_GracefulShutdown(t *testing.T) {
	mockStore := store.NewMock()
	mockKafka := &appkafka.MockKafka{Store: mockStore}
	s := New(mockStore, nil, mockKafka, Options{})

	// Reserve a free port for the server
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Run(ctx, s, addr, "", "")
		close(done)
	}()

	// Wait until the server accepts requests
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Post("http://"+addr+"/users/almaz", "application/json", nil)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.StatusCode)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not start: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()

	select {
	case <-done:
		mockStore.Close()
		if err := mockKafka.Close(); err != nil {
			t.Fatalf("Kafka close error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shutdown gracefully within the expected time")
	}
}
