package token

import (
	"collabboard/internal/database/roomstore"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	roomstore.IRoomStore
	getErr    error
	createErr error
}

func (f *failingStore) Get(ctx context.Context, name string) (*roomstore.RoomRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.IRoomStore.Get(ctx, name)
}

func (f *failingStore) Create(ctx context.Context, name, tok string) error {
	if f.createErr != nil {
		return f.createErr
	}
	return f.IRoomStore.Create(ctx, name, tok)
}

type mapMirror struct {
	mu sync.Mutex
	m  map[string]string
}

func (m *mapMirror) Get(_ context.Context, room string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.m[room]
	return tok, ok, nil
}

func (m *mapMirror) Set(_ context.Context, room, tok string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.m[room] = tok
	return nil
}

func (m *mapMirror) SetAll(ctx context.Context, toks map[string]string) error {
	for k, v := range toks {
		_ = m.Set(ctx, k, v)
	}
	return nil
}

func newSvc(t *testing.T, store roomstore.IRoomStore, mirror Mirror) ITokenService {
	t.Helper()
	svc, err := NewTokenService(store, mirror, DefaultLength)
	require.NoError(t, err)
	return svc
}

func TestJoinOrCreate_NewRoom(t *testing.T) {
	ctx := context.Background()
	store := roomstore.NewMemory()
	svc := newSvc(t, store, nil)

	res, err := svc.JoinOrCreate(ctx, "demo")
	require.NoError(t, err)
	assert.True(t, res.IsNew)
	assert.Equal(t, "demo", res.RoomName)
	assert.Len(t, res.Token, DefaultLength)
	assert.Regexp(t, `^[0-9a-zA-Z]+$`, res.Token)

	rec, err := store.Get(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, res.Token, rec.Token)
	assert.Empty(t, rec.Content)

	tok, ok := svc.Token(ctx, "demo")
	assert.True(t, ok)
	assert.Equal(t, res.Token, tok)
}

func TestJoinOrCreate_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc := newSvc(t, roomstore.NewMemory(), nil)

	first, err := svc.JoinOrCreate(ctx, "demo")
	require.NoError(t, err)
	second, err := svc.JoinOrCreate(ctx, "demo")
	require.NoError(t, err)

	assert.True(t, first.IsNew)
	assert.False(t, second.IsNew)
	assert.Equal(t, first.Token, second.Token)
}

func TestJoinOrCreate_MissingRoomName(t *testing.T) {
	svc := newSvc(t, roomstore.NewMemory(), nil)

	for _, name := range []string{"", "   "} {
		_, err := svc.JoinOrCreate(context.Background(), name)
		assert.ErrorIs(t, err, ErrMissingRoomName)
	}
}

func TestJoinOrCreate_RepairsLegacyRecord(t *testing.T) {
	ctx := context.Background()
	store := roomstore.NewMemory()
	require.NoError(t, store.UpdateContent(ctx, "legacy", "kept"))
	svc := newSvc(t, store, nil)

	res, err := svc.JoinOrCreate(ctx, "legacy")
	require.NoError(t, err)
	assert.False(t, res.IsNew)
	assert.NotEmpty(t, res.Token)

	rec, _ := store.Get(ctx, "legacy")
	assert.Equal(t, res.Token, rec.Token)
	assert.Equal(t, "kept", rec.Content)

	again, err := svc.JoinOrCreate(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, res.Token, again.Token)
}

func TestJoinOrCreate_StorageFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("db down")

	svc := newSvc(t, &failingStore{IRoomStore: roomstore.NewMemory(), getErr: boom}, nil)
	_, err := svc.JoinOrCreate(ctx, "demo")
	assert.ErrorIs(t, err, ErrStorageFailure)
	assert.ErrorIs(t, err, boom)

	svc = newSvc(t, &failingStore{IRoomStore: roomstore.NewMemory(), createErr: boom}, nil)
	_, err = svc.JoinOrCreate(ctx, "demo")
	assert.ErrorIs(t, err, ErrStorageFailure)
	_, ok := svc.Token(ctx, "demo")
	assert.False(t, ok, "a room whose insert failed must not authenticate")
}

func TestJoinOrCreate_ConcurrentSingleToken(t *testing.T) {
	ctx := context.Background()
	svc := newSvc(t, roomstore.NewMemory(), nil)

	var wg sync.WaitGroup
	results := make([]JoinResult, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.JoinOrCreate(ctx, "race")
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	newCount := 0
	for _, r := range results {
		assert.Equal(t, results[0].Token, r.Token)
		if r.IsNew {
			newCount++
		}
	}
	assert.Equal(t, 1, newCount)
}

func TestWarm(t *testing.T) {
	ctx := context.Background()
	store := roomstore.NewMemory()
	require.NoError(t, store.Create(ctx, "a", "tokA"))
	require.NoError(t, store.Create(ctx, "b", "tokB"))
	mirror := &mapMirror{m: map[string]string{}}

	svc := newSvc(t, store, mirror)
	n, err := svc.Warm(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "tokA", mirror.m["a"])

	tok, ok := svc.Token(ctx, "b")
	assert.True(t, ok)
	assert.Equal(t, "tokB", tok)
}

func TestToken_StoreBeforeMirror(t *testing.T) {
	ctx := context.Background()
	store := roomstore.NewMemory()
	mirror := &mapMirror{m: map[string]string{"mirrored": "tokM"}}
	svc := newSvc(t, store, mirror)

	// a mirror entry with no durable record does not authenticate
	_, ok := svc.Token(ctx, "mirrored")
	assert.False(t, ok)

	require.NoError(t, store.Create(ctx, "stored", "tokS"))
	tok, ok := svc.Token(ctx, "stored")
	assert.True(t, ok)
	assert.Equal(t, "tokS", tok)

	_, ok = svc.Token(ctx, "unknown")
	assert.False(t, ok)
}

func TestToken_MirrorCoversStoreOutage(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{IRoomStore: roomstore.NewMemory(), getErr: errors.New("db down")}
	mirror := &mapMirror{m: map[string]string{"demo": "tokD"}}
	svc := newSvc(t, store, mirror)

	tok, ok := svc.Token(ctx, "demo")
	assert.True(t, ok)
	assert.Equal(t, "tokD", tok)

	_, ok = newSvc(t, store, nil).Token(ctx, "demo")
	assert.False(t, ok)
}
