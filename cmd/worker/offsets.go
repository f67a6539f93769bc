package worker

import (
	"sync"

	"github.com/segmentio/kafka-go"
)

// commitTracker hands offsets to the committer in fetch order per partition.
// Workers finish out of order; an offset is committed only once it and every
// earlier fetched offset of its partition are handled.
type commitTracker struct {
	mu      sync.Mutex
	pending map[int][]int64 // fetched and not yet committed, in fetch order
	done    map[int]map[int64]kafka.Message
}

func newCommitTracker() *commitTracker {
	return &commitTracker{
		pending: make(map[int][]int64),
		done:    make(map[int]map[int64]kafka.Message),
	}
}

// fetched registers msg as in flight. Calls must follow fetch order.
func (t *commitTracker) fetched(msg kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[msg.Partition] = append(t.pending[msg.Partition], msg.Offset)
}

// complete marks msg handled and, when that extends the handled prefix of its
// partition, calls commit with the newest message of the prefix. commit runs
// under the tracker lock so commits never go backwards.
func (t *commitTracker) complete(msg kafka.Message, commit func(kafka.Message) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := msg.Partition
	if t.done[p] == nil {
		t.done[p] = make(map[int64]kafka.Message)
	}
	t.done[p][msg.Offset] = msg

	var last kafka.Message
	n := 0
	for _, off := range t.pending[p] {
		m, ok := t.done[p][off]
		if !ok {
			break
		}
		last = m
		delete(t.done[p], off)
		n++
	}
	if n == 0 {
		return nil
	}
	t.pending[p] = t.pending[p][n:]
	return commit(last)
}
