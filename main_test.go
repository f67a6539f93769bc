package main

import (
	"errors"
	"sync/atomic"
	"testing"

	config "example.com/socialfeed/internal/init"
	"example.com/socialfeed/internal/store"
	"github.com/alicebob/miniredis/v2"
)

// closeCountingStore records how often the store was closed.
type closeCountingStore struct {
	*store.MockStore
	closed atomic.Int32
}

func (s *closeCountingStore) Close() { s.closed.Add(1) }

func openWith(st *closeCountingStore) func() (store.StoreInterface, error) {
	return func() (store.StoreInterface, error) { return st, nil }
}

func TestRun_UnknownModeClosesStore(t *testing.T) {
	st := &closeCountingStore{MockStore: store.NewMock()}

	err := run(&config.Config{Mode: "replay"}, openWith(st))
	if err == nil {
		t.Fatalf("expected error for unknown mode")
	}
	if st.closed.Load() != 1 {
		t.Fatalf("expected store closed once, got %d", st.closed.Load())
	}
}

func TestRun_UnreachableRedisClosesStore(t *testing.T) {
	st := &closeCountingStore{MockStore: store.NewMock()}
	cfg := &config.Config{Mode: "server", RedisAddr: "127.0.0.1:1", PostIngest: config.IngestDirect}

	if err := run(cfg, openWith(st)); err == nil {
		t.Fatalf("expected Redis ping error")
	}
	if st.closed.Load() != 1 {
		t.Fatalf("expected store closed once, got %d", st.closed.Load())
	}
}

func TestRun_KafkaWriterFailureClosesStore(t *testing.T) {
	mr := miniredis.RunT(t)
	st := &closeCountingStore{MockStore: store.NewMock()}
	cfg := &config.Config{
		Mode:        "server",
		RedisAddr:   mr.Addr(),
		PostIngest:  config.IngestKafka,
		KafkaBroker: "127.0.0.1:1",
		KafkaTopic:  "post-ingest",
	}

	if err := run(cfg, openWith(st)); err == nil {
		t.Fatalf("expected Kafka dial error")
	}
	if st.closed.Load() != 1 {
		t.Fatalf("expected store closed once, got %d", st.closed.Load())
	}
}

func TestRun_StoreOpenFailure(t *testing.T) {
	boom := errors.New("no cassandra")
	err := run(&config.Config{Mode: "server"}, func() (store.StoreInterface, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}
