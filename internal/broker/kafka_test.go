package appkafka

import (
	"context"
	"testing"
	"time"

	"example.com/socialfeed/internal/models"
	"example.com/socialfeed/internal/store"
	"github.com/segmentio/kafka-go"
)

func TestEncodeDecodePost(t *testing.T) {
	p := models.Post{ID: "p1", AuthorID: "bob", Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Text: "hi"}

	msg, err := EncodePost(p)
	if err != nil {
		t.Fatalf("EncodePost: %v", err)
	}
	if string(msg.Key) != "bob" {
		t.Fatalf("expected author key, got %q", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != PostCreatedKey {
		t.Fatalf("expected event header, got %+v", msg.Headers)
	}

	got, err := DecodePost(msg)
	if err != nil {
		t.Fatalf("DecodePost: %v", err)
	}
	if got.ID != p.ID || got.AuthorID != p.AuthorID || !got.Time.Equal(p.Time) || got.Text != p.Text {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestDecodePostRejectsUnknownFields(t *testing.T) {
	msg := kafka.Message{Value: []byte(`{"id":"p1","authorId":"bob","time":"2024-01-01T00:00:00Z","text":"hi","admin":true}`)}
	if _, err := DecodePost(msg); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestPublishPostThroughMock(t *testing.T) {
	st := store.NewMock()
	mk := &MockKafka{Store: st}
	p := models.Post{ID: "p1", AuthorID: "bob", Time: time.Now(), Text: "hi"}

	if err := PublishPost(mk, p); err != nil {
		t.Fatalf("PublishPost: %v", err)
	}
	if len(mk.Written()) != 1 {
		t.Fatalf("expected one written message")
	}
	posts, _ := st.ScanPostsByAuthor(context.Background(), "bob")
	if len(posts) != 1 {
		t.Fatalf("expected post applied to store, got %d", len(posts))
	}
}

func TestPublishPostFailure(t *testing.T) {
	if err := PublishPost(&MockKafkaFail{}, models.Post{ID: "p"}); err == nil {
		t.Fatalf("expected write error")
	}
}
