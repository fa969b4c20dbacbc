package roomstore

import (
	"context"
	"sort"
	"sync"
)

type memoryRoomStore struct {
	mu    sync.RWMutex
	rooms map[string]RoomRecord
}

var _ IRoomStore = (*memoryRoomStore)(nil)

// NewMemory returns a process-local store; contents are lost on exit.
func NewMemory() IRoomStore {
	return &memoryRoomStore{rooms: make(map[string]RoomRecord)}
}

func (m *memoryRoomStore) Get(_ context.Context, roomName string) (*RoomRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.rooms[roomName]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return &rec, nil
}

func (m *memoryRoomStore) Create(_ context.Context, roomName, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[roomName]; !ok {
		m.rooms[roomName] = RoomRecord{RoomName: roomName, Token: token}
	}
	return nil
}

func (m *memoryRoomStore) UpdateContent(_ context.Context, roomName, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.rooms[roomName]
	rec.RoomName = roomName
	rec.Content = content
	m.rooms[roomName] = rec
	return nil
}

func (m *memoryRoomStore) SetToken(_ context.Context, roomName, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rooms[roomName]
	if !ok {
		return ErrRoomNotFound
	}
	rec.Token = token
	m.rooms[roomName] = rec
	return nil
}

func (m *memoryRoomStore) Tokens(_ context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.rooms))
	for name, rec := range m.rooms {
		if rec.Token != "" {
			out[name] = rec.Token
		}
	}
	return out, nil
}

func (m *memoryRoomStore) List(_ context.Context) ([]RoomRecord, error) {
	m.mu.RLock()
	list := make([]RoomRecord, 0, len(m.rooms))
	for _, rec := range m.rooms {
		list = append(list, rec)
	}
	m.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].RoomName < list[j].RoomName })
	return list, nil
}
