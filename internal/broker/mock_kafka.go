package appkafka

import (
	"context"
	"errors"
	"sync"

	"example.com/socialfeed/internal/store"
	"github.com/segmentio/kafka-go"
)

// MockKafka immediately applies ingested posts to the store.
type MockKafka struct {
	mu                sync.Mutex
	Store             *store.MockStore
	WrittenMessages   []kafka.Message // stores messages written via WriteMessages
	ReadMessages      []kafka.Message // queue of messages to be read via FetchMessage
	CommittedMessages []kafka.Message // messages acknowledged via CommitMessages
	ShouldFail        bool            // flag to simulate failures during write or read operations
}

// WriteMessages records the messages and, when a store is attached, persists
// the posts they carry as the worker would.
func (m *MockKafka) WriteMessages(messages ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errors.New("mock kafka write failed")
	}

	m.WrittenMessages = append(m.WrittenMessages, messages...)
	if m.Store == nil {
		return nil
	}
	for _, msg := range messages {
		post, err := DecodePost(msg)
		if err != nil {
			return err
		}
		if err := m.Store.InsertPost(context.Background(), post); err != nil {
			return err
		}
	}
	return nil
}

// Written returns a copy of the messages written so far.
func (m *MockKafka) Written() []kafka.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]kafka.Message(nil), m.WrittenMessages...)
}

// FetchMessage pops the next queued message.
func (m *MockKafka) FetchMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return kafka.Message{}, errors.New("mock kafka read failed")
	}
	if len(m.ReadMessages) == 0 {
		return kafka.Message{}, errors.New("no messages")
	}
	// Take the first message from the queue and remove it
	msg := m.ReadMessages[0]
	m.ReadMessages = m.ReadMessages[1:]
	return msg, nil
}

// CommitMessages records committed messages in call order.
func (m *MockKafka) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CommittedMessages = append(m.CommittedMessages, msgs...)
	return nil
}

// Committed returns a copy of the messages committed so far.
func (m *MockKafka) Committed() []kafka.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]kafka.Message(nil), m.CommittedMessages...)
}

// Close is a no-op.
func (m *MockKafka) Close() error { return nil }

// MockKafkaFail always fails.
type MockKafkaFail struct{}

func (m *MockKafkaFail) WriteMessages(messages ...kafka.Message) error {
	return errors.New("mock kafka write failed")
}

func (m *MockKafkaFail) FetchMessage(ctx context.Context) (kafka.Message, error) {
	return kafka.Message{}, errors.New("mock kafka read failed")
}

func (m *MockKafkaFail) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	return errors.New("mock kafka commit failed")
}

func (m *MockKafkaFail) Close() error { return nil }
