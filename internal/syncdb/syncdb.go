package syncdb

import (
	"collabboard/internal/database/roomstore"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	writeTimeout = 3 * time.Second
	flushTimeout = 5 * time.Second
	maxBatch     = 256
)

type write struct {
	room    string
	content string
	seq     uint64
}

// Writer persists room content off the broadcast path. Writes are best
// effort: a full queue drops the write and a failed write is not retried.
type Writer struct {
	store roomstore.IRoomStore
	queue chan write
	done  chan struct{}

	mu      sync.Mutex
	seq     uint64
	pending map[string]write // newest queued write per room
}

func NewWriter(store roomstore.IRoomStore, size int) *Writer {
	if size <= 0 {
		size = 1
	}
	return &Writer{
		store:   store,
		queue:   make(chan write, size),
		done:    make(chan struct{}),
		pending: make(map[string]write),
	}
}

// Enqueue never blocks. It reports false when the write was dropped.
func (w *Writer) Enqueue(room, content string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.seq++
	wr := write{room: room, content: content, seq: w.seq}
	select {
	case w.queue <- wr:
		w.pending[room] = wr
		return true
	default:
		zap.L().Warn("syncdb.queue_full", zap.String("room", room))
		return false
	}
}

// Pending returns the newest content queued for room that has not been
// written yet.
func (w *Writer) Pending(room string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	wr, ok := w.pending[room]
	return wr.content, ok
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (w *Writer) Run(ctx context.Context) {
	go func() {
		defer close(w.done)
		for {
			select {
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
				for batch := w.collect(nil); len(batch) > 0; batch = w.collect(nil) {
					w.flush(flushCtx, batch)
				}
				cancel()
				return
			case first := <-w.queue:
				w.flush(context.WithoutCancel(ctx), w.collect(&first))
			}
		}
	}()
}

// Done is closed once Run has returned.
func (w *Writer) Done() <-chan struct{} { return w.done }

// collect gathers whatever is queued right now, keeping only the latest
// content per room and the order in which rooms first appeared.
func (w *Writer) collect(first *write) []write {
	var batch []write
	idx := make(map[string]int)
	add := func(wr write) {
		if i, ok := idx[wr.room]; ok {
			batch[i] = wr
			return
		}
		idx[wr.room] = len(batch)
		batch = append(batch, wr)
	}
	if first != nil {
		add(*first)
	}
	for n := 0; n < maxBatch; n++ {
		select {
		case wr := <-w.queue:
			add(wr)
		default:
			return batch
		}
	}
	return batch
}

func (w *Writer) flush(ctx context.Context, batch []write) {
	for _, wr := range batch {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := w.store.UpdateContent(wctx, wr.room, wr.content)
		cancel()
		if err != nil {
			zap.L().Error("syncdb.update_content", zap.String("room", wr.room), zap.Error(err))
		}
		w.settle(wr)
	}
}

// settle forgets wr unless a newer write for the same room is queued.
func (w *Writer) settle(wr write) {
	w.mu.Lock()
	if p, ok := w.pending[wr.room]; ok && p.seq == wr.seq {
		delete(w.pending, wr.room)
	}
	w.mu.Unlock()
}
