package appkafka

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"example.com/socialfeed/internal/models"
	"github.com/segmentio/kafka-go"
)

// PostCreatedKey marks post ingest events in message headers.
const PostCreatedKey = "post_created"

// KafkaWriter defines an interface for writing messages to Kafka.
type KafkaWriter interface {
	WriteMessages(messages ...kafka.Message) error
	Close() error
}

// KafkaReader defines an interface for reading messages from Kafka.
// FetchMessage does not commit; the caller commits once a message is handled.
type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig holds configuration parameters for Kafka.
type KafkaConfig struct {
	Brokers      []string      // list of Kafka brokers
	Topic        string        // topic name
	Partition    int           // partition number (used for low-level writes)
	WriteTimeout time.Duration // write timeout duration
	ReadTimeout  time.Duration // read timeout duration (used for consumer group)
	GroupID      string        // consumer group ID
}

// EncodePost wraps a post into an ingest message keyed by author, so one
// author's posts stay on one partition.
func EncodePost(p models.Post) (kafka.Message, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal post: %w", err)
	}
	return kafka.Message{
		Key:     []byte(p.AuthorID),
		Value:   data,
		Headers: []kafka.Header{{Key: "event", Value: []byte(PostCreatedKey)}},
	}, nil
}

// DecodePost reads a post back from an ingest message. Unknown fields are
// rejected.
func DecodePost(msg kafka.Message) (models.Post, error) {
	var p models.Post
	dec := json.NewDecoder(bytes.NewReader(msg.Value))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return models.Post{}, fmt.Errorf("decode post: %w", err)
	}
	return p, nil
}

// PublishPost writes a single post ingest event.
func PublishPost(w KafkaWriter, p models.Post) error {
	msg, err := EncodePost(p)
	if err != nil {
		return err
	}
	return w.WriteMessages(msg)
}

// RealKafkaWriter implements KafkaWriter using kafka.Conn (low-level writes).
type RealKafkaWriter struct {
	conn   *kafka.Conn
	config KafkaConfig
}

// NewKafkaWriter creates a new Kafka writer connection.
func NewKafkaWriter(cfg KafkaConfig) (*RealKafkaWriter, error) {
	if len(cfg.Brokers) == 0 {
		cfg.Brokers = []string{"localhost:9092"}
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	conn, err := kafka.DialLeader(context.Background(), "tcp", cfg.Brokers[0], cfg.Topic, cfg.Partition)
	if err != nil {
		return nil, err
	}

	return &RealKafkaWriter{
		conn:   conn,
		config: cfg,
	}, nil
}

func (w *RealKafkaWriter) WriteMessages(messages ...kafka.Message) error {
	if w.conn == nil {
		return errors.New("kafka connection is nil")
	}
	w.conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout))
	_, err := w.conn.WriteMessages(messages...)
	return err
}

func (w *RealKafkaWriter) Close() error {
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}

// RealKafkaReader implements KafkaReader using kafka.Reader (consumer group).
type RealKafkaReader struct {
	reader *kafka.Reader
}

// NewKafkaReader creates a new Kafka consumer group reader.
func NewKafkaReader(cfg KafkaConfig) KafkaReader {
	if len(cfg.Brokers) == 0 {
		cfg.Brokers = []string{"localhost:9092"}
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.Topic,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        cfg.ReadTimeout,
	})
	return &RealKafkaReader{reader: r}
}

func (r *RealKafkaReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	return r.reader.FetchMessage(ctx)
}

// CommitMessages is a no-op without a consumer group.
func (r *RealKafkaReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	if r.reader.Config().GroupID == "" {
		return nil
	}
	return r.reader.CommitMessages(ctx, msgs...)
}

func (r *RealKafkaReader) Close() error {
	return r.reader.Close()
}
