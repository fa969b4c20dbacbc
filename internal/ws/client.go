package ws

import (
	"collabboard/internal/session"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const sendBuffer = 64

var (
	errConnClosed   = errors.New("connection closed")
	errSlowConsumer = errors.New("send buffer full")
)

// clientConn is one admitted websocket. All data frames go through send and
// are written by writePump alone; control frames use WriteControl, which
// gorilla allows concurrently.
type clientConn struct {
	id      string
	rawConn *websocket.Conn
	send    chan []byte

	once sync.Once
	done chan struct{}
}

var _ session.Peer = (*clientConn)(nil)

func newClientConn(id string, raw *websocket.Conn) *clientConn {
	return &clientConn{
		id:      id,
		rawConn: raw,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
	}
}

func (c *clientConn) ID() string { return c.id }

// Send queues evt without blocking. A peer that cannot keep up is closed
// rather than stalling the room.
func (c *clientConn) Send(evt session.Event) error {
	data, err := json.Marshal(outbound{Event: evt.Name, Body: evt.Body})
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		c.close()
		return errSlowConsumer
	}
}

func (c *clientConn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.rawConn.Close()
	})
}

func (c *clientConn) writePump(pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.rawConn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case now := <-ticker.C:
			stamp := strconv.FormatInt(now.UnixNano(), 10)
			if err := c.rawConn.WriteControl(websocket.PingMessage, []byte(stamp), time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// latencyFrom turns the payload of one of our pings back into a round trip.
func latencyFrom(appData string, now time.Time) (time.Duration, bool) {
	sent, err := strconv.ParseInt(appData, 10, 64)
	if err != nil {
		return 0, false
	}
	d := now.Sub(time.Unix(0, sent))
	if d < 0 {
		return 0, false
	}
	return d, true
}
