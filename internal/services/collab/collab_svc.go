package collab

import (
	"collabboard/internal/database/roomstore"
	"collabboard/internal/services/token"
	"collabboard/internal/session"
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultMaxContentLength = 100000
	DefaultUpdateInterval   = 50 * time.Millisecond
)

// Outbound event names.
const (
	EventUpdate       = "update"
	EventNotification = "notification"
	EventPong         = "pong"
)

// Notification kinds.
const (
	NotifyInitial = "initial"
	NotifyJoin    = "join"
	NotifyLeave   = "leave"
)

var (
	ErrMissingParameters      = errors.New("missing connection parameters (pseudo, room, token)")
	ErrInvalidPseudo          = errors.New("invalid pseudo")
	ErrAuthenticationRejected = errors.New("invalid token or unknown room")
	ErrInvalidType            = errors.New("content must be a string")
	ErrPayloadTooLarge        = errors.New("content too large")
	ErrRateLimited            = session.ErrRateLimited
	ErrUnknownConnection      = session.ErrUnknownConnection
)

type Notification struct {
	Type     string   `json:"type"`
	Message  string   `json:"message"`
	UserList []string `json:"userList"`
}

type Pong struct {
	LatencyMs int64 `json:"latencyMs"`
}

// Persister takes accepted content off the broadcast path. Pending reports
// the newest content for room that has not reached storage yet.
type Persister interface {
	Enqueue(room, content string) bool
	Pending(room string) (string, bool)
}

// EventCounter is told about every accepted update.
type EventCounter interface {
	RecordEvent()
}

type Options struct {
	MaxContentLength int
	UpdateInterval   time.Duration
	// Now is swapped in tests.
	Now func() time.Time
}

type ICollabService interface {
	Authenticate(ctx context.Context, hs Handshake) (Admission, error)
	Admit(ctx context.Context, adm Admission, peer session.Peer) *session.Session
	SubmitUpdate(ctx context.Context, connID string, raw []byte) error
	Disconnect(connID string)
}

type collabService struct {
	tokens   token.ITokenService
	registry *session.Registry
	store    roomstore.IRoomStore
	persist  Persister
	counter  EventCounter
	opts     Options

	// one logical thread: admission, updates and departures are applied
	// and fanned out in a single order
	mu sync.Mutex
}

var _ ICollabService = (*collabService)(nil)

func NewCollabService(
	tokens token.ITokenService,
	registry *session.Registry,
	store roomstore.IRoomStore,
	persist Persister,
	counter EventCounter,
	opts Options,
) ICollabService {
	if opts.MaxContentLength <= 0 {
		opts.MaxContentLength = DefaultMaxContentLength
	}
	if opts.UpdateInterval < 0 {
		opts.UpdateInterval = DefaultUpdateInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &collabService{
		tokens:   tokens,
		registry: registry,
		store:    store,
		persist:  persist,
		counter:  counter,
		opts:     opts,
	}
}

func (svc *collabService) broadcast(room, exclude string, evt session.Event) {
	for _, p := range svc.registry.Peers(room, exclude) {
		svc.send(p, evt)
	}
}

func (svc *collabService) send(p session.Peer, evt session.Event) {
	if err := p.Send(evt); err != nil {
		zap.L().Debug("collab.send", zap.String("conn", p.ID()), zap.String("event", evt.Name), zap.Error(err))
	}
}
