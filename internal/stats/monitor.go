package stats

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultInterval      = time.Minute
	DefaultPreviewLength = 50
	ellipsis             = "..."
)

// Source is the live room state the monitor reports on.
type Source interface {
	ActiveConnectionCount() int
	ActiveRooms() []string
	UsersOf(room string) []string
	Content(room string) (string, bool)
}

type RoomStat struct {
	Name           string   `json:"name"           example:"demo"`
	Users          []string `json:"users"`
	ContentPreview string   `json:"contentPreview" example:"hello"`
} // @name RoomStat

type Snapshot struct {
	Status            string     `json:"status"            example:"OK"`
	ActiveConnections int        `json:"activeConnections"`
	Rooms             []RoomStat `json:"rooms"`
	EventsPerMinute   int64      `json:"eventsPerMinute"`
} // @name StatusResponse

// Monitor counts accepted updates and resets the count every interval.
// The count is coarse: whatever accumulated since the last tick.
type Monitor struct {
	src        Source
	interval   time.Duration
	previewLen int
	events     atomic.Int64
}

func NewMonitor(src Source, interval time.Duration, previewLen int) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if previewLen <= 0 {
		previewLen = DefaultPreviewLength
	}
	return &Monitor{src: src, interval: interval, previewLen: previewLen}
}

func (m *Monitor) RecordEvent() { m.events.Add(1) }

func (m *Monitor) Events() int64 { return m.events.Load() }

func (m *Monitor) Snapshot() Snapshot {
	rooms := m.src.ActiveRooms()
	snap := Snapshot{
		Status:            "OK",
		ActiveConnections: m.src.ActiveConnectionCount(),
		Rooms:             make([]RoomStat, 0, len(rooms)),
		EventsPerMinute:   m.events.Load(),
	}
	for _, name := range rooms {
		users := m.src.UsersOf(name)
		if users == nil {
			continue // emptied between the two reads
		}
		content, _ := m.src.Content(name)
		snap.Rooms = append(snap.Rooms, RoomStat{
			Name:           name,
			Users:          users,
			ContentPreview: Preview(content, m.previewLen),
		})
	}
	return snap
}

// Run logs a report and resets the event counter every interval.
func (m *Monitor) Run(ctx context.Context) {
	tk := time.NewTicker(m.interval)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				m.tick()
			}
		}
	}()
}

// tick reports the count accumulated since the previous tick and zeroes it.
func (m *Monitor) tick() int64 {
	n := m.events.Swap(0)
	rooms := m.src.ActiveRooms()
	zap.L().Info("stats.minute",
		zap.Int("active_connections", m.src.ActiveConnectionCount()),
		zap.Int64("updates", n),
		zap.Int("active_rooms", len(rooms)),
		zap.String("rooms", strings.Join(rooms, ", ")),
	)
	return n
}

// Preview cuts s to n characters, marking the cut with an ellipsis.
func Preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + ellipsis
}
