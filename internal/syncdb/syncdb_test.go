package syncdb

import (
	"collabboard/internal/database/roomstore"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	roomstore.IRoomStore
	mu     sync.Mutex
	writes []string
	err    error
}

func (r *recordingStore) UpdateContent(ctx context.Context, room, content string) error {
	r.mu.Lock()
	r.writes = append(r.writes, room+"="+content)
	r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	return r.IRoomStore.UpdateContent(ctx, room, content)
}

func (r *recordingStore) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.writes...)
}

func TestWriter_PersistsAsync(t *testing.T) {
	store := &recordingStore{IRoomStore: roomstore.NewMemory()}
	w := NewWriter(store, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Run(ctx)

	require.True(t, w.Enqueue("demo", "hello"))

	assert.Eventually(t, func() bool {
		rec, err := store.Get(context.Background(), "demo")
		return err == nil && rec.Content == "hello"
	}, time.Second, 5*time.Millisecond)
}

func TestWriter_CoalescesPerRoom(t *testing.T) {
	store := &recordingStore{IRoomStore: roomstore.NewMemory()}
	w := NewWriter(store, 16)

	// queued before Run so the first batch sees all of them
	w.Enqueue("a", "1")
	w.Enqueue("b", "1")
	w.Enqueue("a", "2")
	w.Enqueue("a", "3")

	ctx, cancel := context.WithCancel(context.Background())
	w.Run(ctx)
	assert.Eventually(t, func() bool { return len(store.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-w.Done()

	assert.Equal(t, []string{"a=3", "b=1"}, store.snapshot())
}

func TestWriter_DropsWhenFull(t *testing.T) {
	w := NewWriter(roomstore.NewMemory(), 1)
	assert.True(t, w.Enqueue("a", "1"))
	assert.False(t, w.Enqueue("a", "2"))
}

func TestWriter_FlushesOnShutdown(t *testing.T) {
	store := &recordingStore{IRoomStore: roomstore.NewMemory()}
	w := NewWriter(store, 16)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w.Enqueue("demo", "last words")
	w.Run(ctx)
	<-w.Done()

	rec, err := store.Get(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, "last words", rec.Content)
}

func TestWriter_FailureIsLoggedNotRetried(t *testing.T) {
	store := &recordingStore{IRoomStore: roomstore.NewMemory(), err: errors.New("disk full")}
	w := NewWriter(store, 16)
	ctx, cancel := context.WithCancel(context.Background())
	w.Run(ctx)

	w.Enqueue("demo", "x")
	assert.Eventually(t, func() bool { return len(store.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-w.Done()
	assert.Len(t, store.snapshot(), 1)
}

func TestWriter_PendingUntilWritten(t *testing.T) {
	store := &recordingStore{IRoomStore: roomstore.NewMemory()}
	w := NewWriter(store, 16)

	_, ok := w.Pending("demo")
	assert.False(t, ok)

	w.Enqueue("demo", "v1")
	w.Enqueue("demo", "v2")
	c, ok := w.Pending("demo")
	require.True(t, ok)
	assert.Equal(t, "v2", c)

	ctx, cancel := context.WithCancel(context.Background())
	w.Run(ctx)
	assert.Eventually(t, func() bool {
		_, ok := w.Pending("demo")
		return !ok
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-w.Done()

	rec, err := store.Get(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, "v2", rec.Content)
}
