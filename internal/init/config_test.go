package config

import (
	"testing"
	"time"
)

func TestInitDefaults(t *testing.T) {
	c := Init()

	if c.Mode != "server" {
		t.Fatalf("expected default mode server, got %q", c.Mode)
	}
	if c.PostIngest != IngestKafka {
		t.Fatalf("expected default ingest %q, got %q", IngestKafka, c.PostIngest)
	}
	if c.DefaultAvatarURL != "images/default.png" {
		t.Fatalf("unexpected default avatar: %q", c.DefaultAvatarURL)
	}
	if c.LockTTL != 5*time.Second {
		t.Fatalf("expected lock ttl 5s, got %s", c.LockTTL)
	}
	if Get() != c {
		t.Fatalf("Get should return the loaded config")
	}
}

func TestInitFromEnv(t *testing.T) {
	t.Setenv("POST_INGEST", IngestDirect)
	t.Setenv("FEED_FETCH_CONCURRENCY", "4")
	t.Setenv("LOCK_WAIT", "250ms")

	c := Init()
	if c.PostIngest != IngestDirect {
		t.Fatalf("expected ingest from env, got %q", c.PostIngest)
	}
	if c.FeedFetchConcurrency != 4 {
		t.Fatalf("expected concurrency 4, got %d", c.FeedFetchConcurrency)
	}
	if c.LockWait != 250*time.Millisecond {
		t.Fatalf("expected lock wait 250ms, got %s", c.LockWait)
	}
}

func TestParseDurationFallback(t *testing.T) {
	if d := parseDuration("nonsense", 3*time.Second); d != 3*time.Second {
		t.Fatalf("expected fallback, got %s", d)
	}
	if d := parseDuration("1m", time.Second); d != time.Minute {
		t.Fatalf("expected 1m, got %s", d)
	}
}
