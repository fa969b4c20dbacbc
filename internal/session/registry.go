package session

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrRateLimited       = errors.New("update rate limited")
)

// Event is one outbound message for a connection.
type Event struct {
	Name string
	Body any
}

// Peer is the sending side of a live connection. Send must not block.
type Peer interface {
	ID() string
	Send(evt Event) error
}

// Session is the state kept for one admitted connection.
type Session struct {
	ID       string
	Pseudo   string
	Room     string
	JoinedAt time.Time

	peer       Peer
	lastUpdate time.Time
}

type roomEntry struct {
	users   []string // pseudos in join order, duplicates allowed
	conns   []string // connection ids in join order
	content string
}

// Admitted is the registry state observed atomically with a Register call.
type Admitted struct {
	Session *Session
	Users   []string
	Content string
}

// Registry owns connection -> session and room -> roster. A room is active
// exactly while its roster is non-empty.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	rooms    map[string]*roomEntry
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		rooms:    make(map[string]*roomEntry),
	}
}

// Register records a session for connID in room. seed becomes the room's
// cached content only when this call activates the room.
func (r *Registry) Register(connID, pseudo, room string, peer Peer, seed string) Admitted {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.rooms[room]
	if !ok {
		entry = &roomEntry{content: seed}
		r.rooms[room] = entry
	}
	s := &Session{
		ID:       connID,
		Pseudo:   pseudo,
		Room:     room,
		JoinedAt: time.Now(),
		peer:     peer,
	}
	r.sessions[connID] = s
	entry.users = append(entry.users, pseudo)
	entry.conns = append(entry.conns, connID)

	return Admitted{Session: s, Users: copyOf(entry.users), Content: entry.content}
}

// Unregister drops connID. The first matching pseudo leaves the roster and an
// emptied room stops being active. Unknown ids are a no-op.
func (r *Registry) Unregister(connID string) (*Session, []string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return nil, nil, false
	}
	delete(r.sessions, connID)

	entry, ok := r.rooms[s.Room]
	if !ok {
		return s, nil, true
	}
	entry.users = removeFirst(entry.users, s.Pseudo)
	entry.conns = removeFirst(entry.conns, connID)
	if len(entry.conns) == 0 {
		delete(r.rooms, s.Room)
		return s, []string{}, true
	}
	return s, copyOf(entry.users), true
}

func (r *Registry) Session(connID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[connID]
	return s, ok
}

// UsersOf returns a copy of the room's roster; nil when the room is inactive.
func (r *Registry) UsersOf(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.rooms[room]; ok {
		return copyOf(entry.users)
	}
	return nil
}

func (r *Registry) ActiveConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ActiveRooms returns the names of rooms with at least one connection, sorted.
func (r *Registry) ActiveRooms() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.rooms))
	for name := range r.rooms {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Peers snapshots the room's connections except exclude, in join order.
func (r *Registry) Peers(room, exclude string) []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.rooms[room]
	if !ok {
		return nil
	}
	peers := make([]Peer, 0, len(entry.conns))
	for _, id := range entry.conns {
		if id == exclude {
			continue
		}
		if s, ok := r.sessions[id]; ok {
			peers = append(peers, s.peer)
		}
	}
	return peers
}

// Touch enforces the per-connection floor between accepted updates. On
// success the connection's last-update time becomes now.
func (r *Registry) Touch(connID string, now time.Time, minInterval time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if !ok {
		return ErrUnknownConnection
	}
	if !s.lastUpdate.IsZero() && now.Sub(s.lastUpdate) < minInterval {
		return ErrRateLimited
	}
	s.lastUpdate = now
	return nil
}

func (r *Registry) Content(room string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.rooms[room]; ok {
		return entry.content, true
	}
	return "", false
}

// SetContent replaces the cached content of an active room.
func (r *Registry) SetContent(room, content string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.rooms[room]
	if ok {
		entry.content = content
	}
	return ok
}

func removeFirst(list []string, v string) []string {
	for i, x := range list {
		if x == v {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func copyOf(list []string) []string {
	out := make([]string, len(list))
	copy(out, list)
	return out
}
