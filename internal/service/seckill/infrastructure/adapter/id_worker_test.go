// internal/service/seckill/infrastructure/adapter/id_worker_test.go
package adapter

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSequenceStore struct {
	counts map[string]int64
	keys   []string
}

func (f *fakeSequenceStore) Incr(_ context.Context, key string) (int64, error) {
	if f.counts == nil {
		f.counts = make(map[string]int64)
	}
	f.counts[key]++
	f.keys = append(f.keys, key)
	return f.counts[key], nil
}

func TestIDWorker_BitLayout(t *testing.T) {
	seq := &fakeSequenceStore{}
	worker := NewIDWorker(seq)

	before := time.Now().UTC().Unix() - beginTimestamp
	id, err := worker.NextID(context.Background(), "order:")
	after := time.Now().UTC().Unix() - beginTimestamp
	require.NoError(t, err)

	timestamp := id >> sequenceBits
	counter := id & ((1 << sequenceBits) - 1)

	assert.GreaterOrEqual(t, timestamp, before)
	assert.LessOrEqual(t, timestamp, after)
	assert.Equal(t, int64(1), counter)
}

func TestIDWorker_MonotonicWithinSecond(t *testing.T) {
	worker := NewIDWorker(&fakeSequenceStore{})

	var prev int64
	for i := 0; i < 100; i++ {
		id, err := worker.NextID(context.Background(), "order:")
		require.NoError(t, err)
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestIDWorker_CounterKeyedByScopeAndDay(t *testing.T) {
	seq := &fakeSequenceStore{}
	worker := NewIDWorker(seq)

	_, err := worker.NextID(context.Background(), "order:")
	require.NoError(t, err)
	_, err = worker.NextID(context.Background(), "refund:")
	require.NoError(t, err)

	require.Len(t, seq.keys, 2)
	day := time.Now().UTC().Format("2006:01:02")
	assert.Equal(t, "incr:order:"+day, seq.keys[0])
	assert.True(t, strings.HasPrefix(seq.keys[1], "incr:refund:"))
}
