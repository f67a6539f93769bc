package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	appkafka "example.com/socialfeed/internal/broker"
	"example.com/socialfeed/internal/models"
	"example.com/socialfeed/internal/posts"
	"example.com/socialfeed/internal/store"
	"github.com/segmentio/kafka-go"
)

func encode(t *testing.T, p models.Post) kafka.Message {
	t.Helper()
	msg, err := appkafka.EncodePost(p)
	if err != nil {
		t.Fatalf("EncodePost: %v", err)
	}
	return msg
}

// runWorkerOnce processes and acknowledges a single Kafka message for testing.
func runWorkerOnce(ctx context.Context, w *Worker) error {
	msg, err := w.reader.FetchMessage(ctx)
	if err != nil {
		return err
	}
	w.offsets.fetched(msg)
	defer w.ack(msg)
	if len(msg.Value) == 0 {
		return nil
	}
	return w.handle(ctx, msg)
}

// at places msg at the given partition offset.
func at(msg kafka.Message, offset int64) kafka.Message {
	msg.Offset = offset
	return msg
}

// ---------- Positive test ----------

func TestWorker_IngestsPost(t *testing.T) {
	mockStore := store.NewMock()
	post, _ := posts.New("author", "Hello followers!", time.Now())

	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{encode(t, post)},
	}
	w := New(posts.NewRepository(mockStore), mockKafka, 1, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := runWorkerOnce(ctx, w); err != nil {
		t.Fatalf("worker failed: %v", err)
	}

	stored, _ := mockStore.ScanPostsByAuthor(ctx, "author")
	if len(stored) != 1 || stored[0].Text != post.Text {
		t.Fatalf("post not stored correctly, got: %+v", stored)
	}
}

// ---------- Negative tests ----------

// Simulate Kafka read error
func TestWorker_KafkaReadError(t *testing.T) {
	w := New(posts.NewRepository(store.NewMock()), &appkafka.MockKafkaFail{}, 1, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := runWorkerOnce(ctx, w); err == nil {
		t.Fatalf("expected error from Kafka read")
	}
}

// Simulate invalid post JSON
func TestWorker_InvalidPostJSON(t *testing.T) {
	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{{Value: []byte("{invalid-json}")}},
	}
	w := New(posts.NewRepository(store.NewMock()), mockKafka, 1, 1)

	if err := runWorkerOnce(context.Background(), w); err == nil {
		t.Fatalf("expected error for invalid JSON")
	}
}

// A decodable but malformed post is rejected without touching the store
func TestWorker_InvalidPostShape(t *testing.T) {
	sink := &countingSink{}
	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{encode(t, models.Post{ID: "p1", AuthorID: "a"})},
	}
	w := New(sink, mockKafka, 1, 1)

	if err := runWorkerOnce(context.Background(), w); err == nil {
		t.Fatalf("expected validation error")
	}
	if sink.calls != 0 {
		t.Fatalf("expected no ingest attempt, got %d", sink.calls)
	}
}

func TestWorker_EmptyKafkaMessage(t *testing.T) {
	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{{Value: nil}},
	}
	w := New(posts.NewRepository(store.NewMock()), mockKafka, 1, 1)

	if err := runWorkerOnce(context.Background(), w); err != nil {
		t.Fatalf("expected no error for empty Kafka message, got: %v", err)
	}
}

// countingSink fails the first failures calls with a storage error.
type countingSink struct {
	mu       sync.Mutex
	calls    int
	failures int
}

func (c *countingSink) Ingest(ctx context.Context, p models.Post) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls <= c.failures {
		return errors.New("cassandra timeout")
	}
	return nil
}

func TestWorker_RetriesStorageFaults(t *testing.T) {
	sink := &countingSink{failures: 2}
	post, _ := posts.New("author", "retry me", time.Now())
	w := New(sink, &appkafka.MockKafka{ReadMessages: []kafka.Message{encode(t, post)}}, 1, 1)

	if err := runWorkerOnce(context.Background(), w); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if sink.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", sink.calls)
	}
}

func TestWorker_GivesUpAfterMaxAttempts(t *testing.T) {
	post, _ := posts.New("author", "never stored", time.Now())
	w := New(posts.NewRepository(&store.MockStoreFail{}), &appkafka.MockKafka{ReadMessages: []kafka.Message{encode(t, post)}}, 1, 1)

	if err := runWorkerOnce(context.Background(), w); err == nil {
		t.Fatalf("expected error from failing store")
	}
}

// ---------- Offset commits ----------

func TestWorker_CommitsAfterIngest(t *testing.T) {
	mockStore := store.NewMock()
	post, _ := posts.New("author", "commit me", time.Now())
	mockKafka := &appkafka.MockKafka{ReadMessages: []kafka.Message{at(encode(t, post), 7)}}
	w := New(posts.NewRepository(mockStore), mockKafka, 1, 1)

	if err := runWorkerOnce(context.Background(), w); err != nil {
		t.Fatalf("worker failed: %v", err)
	}
	committed := mockKafka.Committed()
	if len(committed) != 1 || committed[0].Offset != 7 {
		t.Fatalf("expected offset 7 committed, got %+v", committed)
	}
}

// A dropped message is still committed so it is not redelivered forever
func TestWorker_CommitsDroppedMessage(t *testing.T) {
	mockKafka := &appkafka.MockKafka{
		ReadMessages: []kafka.Message{at(kafka.Message{Value: []byte("{invalid-json}")}, 3)},
	}
	w := New(posts.NewRepository(store.NewMock()), mockKafka, 1, 1)

	if err := runWorkerOnce(context.Background(), w); err == nil {
		t.Fatalf("expected error for invalid JSON")
	}
	if committed := mockKafka.Committed(); len(committed) != 1 || committed[0].Offset != 3 {
		t.Fatalf("expected offset 3 committed, got %+v", committed)
	}
}

func TestCommitTracker_CommitsInFetchOrder(t *testing.T) {
	tr := newCommitTracker()
	msgs := []kafka.Message{
		{Partition: 0, Offset: 10},
		{Partition: 0, Offset: 11},
		{Partition: 0, Offset: 12},
		{Partition: 1, Offset: 5},
	}
	for _, m := range msgs {
		tr.fetched(m)
	}

	var committed []kafka.Message
	commit := func(m kafka.Message) error {
		committed = append(committed, m)
		return nil
	}

	// later offsets finish first: nothing may be committed yet
	_ = tr.complete(msgs[2], commit)
	_ = tr.complete(msgs[1], commit)
	if len(committed) != 0 {
		t.Fatalf("committed past an in-flight offset: %+v", committed)
	}

	// other partitions are independent
	_ = tr.complete(msgs[3], commit)
	if len(committed) != 1 || committed[0].Partition != 1 || committed[0].Offset != 5 {
		t.Fatalf("expected partition 1 offset 5, got %+v", committed)
	}

	// the oldest one completes the prefix and the newest offset is committed
	_ = tr.complete(msgs[0], commit)
	if len(committed) != 2 || committed[1].Offset != 12 {
		t.Fatalf("expected offset 12 committed last, got %+v", committed)
	}
}

// slowSink takes a while per post so messages are still queued at shutdown.
type slowSink struct {
	mu    sync.Mutex
	texts []string
	delay time.Duration
}

func (s *slowSink) Ingest(ctx context.Context, p models.Post) error {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, p.Text)
	return nil
}

func TestWorker_DrainsQueueOnShutdown(t *testing.T) {
	var queued []kafka.Message
	for i := 0; i < 5; i++ {
		p, _ := posts.New("author", fmt.Sprintf("queued %d", i), time.Now())
		queued = append(queued, at(encode(t, p), int64(i)))
	}
	mockKafka := &appkafka.MockKafka{ReadMessages: queued}
	sink := &slowSink{delay: 30 * time.Millisecond}
	w := New(sink, mockKafka, 1, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	w.Run(ctx)

	sink.mu.Lock()
	n := len(sink.texts)
	sink.mu.Unlock()
	if n != 5 {
		t.Fatalf("expected all 5 queued posts ingested, got %d", n)
	}
	committed := mockKafka.Committed()
	if len(committed) == 0 || committed[len(committed)-1].Offset != 4 {
		t.Fatalf("expected offset 4 committed last, got %+v", committed)
	}
}
