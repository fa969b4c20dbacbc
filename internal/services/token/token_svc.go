package token

import (
	"collabboard/internal/database/roomstore"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	nanoid "github.com/jaevor/go-nanoid"
	"go.uber.org/zap"
)

const (
	alphabet      = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	DefaultLength = 8
)

var (
	ErrMissingRoomName = errors.New("room name is required")
	ErrStorageFailure  = errors.New("storage failure")
)

// JoinResult is what a client gets back from the join handshake.
type JoinResult struct {
	RoomName string `json:"roomName" example:"demo"`
	Token    string `json:"token"    example:"k3v9x0aa"`
	IsNew    bool   `json:"isNew"`
}

// Mirror is an optional second copy of the token map (redis).
type Mirror interface {
	Get(ctx context.Context, room string) (string, bool, error)
	Set(ctx context.Context, room, token string) error
	SetAll(ctx context.Context, tokens map[string]string) error
}

type ITokenService interface {
	Warm(ctx context.Context) (int, error)
	Token(ctx context.Context, roomName string) (string, bool)
	JoinOrCreate(ctx context.Context, roomName string) (JoinResult, error)
	Generate() string
}

type tokenService struct {
	store  roomstore.IRoomStore
	mirror Mirror
	gen    func() string

	mu     sync.RWMutex
	tokens map[string]string

	// serialises join handshakes so a new room gets exactly one token
	joinMu sync.Mutex
}

var _ ITokenService = (*tokenService)(nil)

// NewTokenService builds the token store. mirror may be nil.
func NewTokenService(store roomstore.IRoomStore, mirror Mirror, length int) (ITokenService, error) {
	if length <= 0 {
		length = DefaultLength
	}
	gen, err := nanoid.CustomASCII(alphabet, length)
	if err != nil {
		return nil, fmt.Errorf("token generator: %w", err)
	}
	return &tokenService{
		store:  store,
		mirror: mirror,
		gen:    gen,
		tokens: make(map[string]string),
	}, nil
}

func (svc *tokenService) Generate() string { return svc.gen() }

// Warm loads every persisted token into memory.
func (svc *tokenService) Warm(ctx context.Context) (int, error) {
	toks, err := svc.store.Tokens(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}

	svc.mu.Lock()
	for room, tok := range toks {
		svc.tokens[room] = tok
	}
	svc.mu.Unlock()

	if svc.mirror != nil {
		if err := svc.mirror.SetAll(ctx, toks); err != nil {
			zap.L().Warn("token.mirror_warm", zap.Error(err))
		}
	}
	return len(toks), nil
}

// Token returns the token bound to roomName. Memory wins once populated;
// misses go to the durable store. The mirror only answers while the store
// is failing, so a room with no durable record never authenticates.
func (svc *tokenService) Token(ctx context.Context, roomName string) (string, bool) {
	svc.mu.RLock()
	tok, ok := svc.tokens[roomName]
	svc.mu.RUnlock()
	if ok {
		return tok, true
	}

	rec, err := svc.store.Get(ctx, roomName)
	switch {
	case err == nil:
		if rec.Token == "" {
			return "", false
		}
		svc.remember(roomName, rec.Token)
		return rec.Token, true
	case errors.Is(err, roomstore.ErrRoomNotFound):
		return "", false
	}

	zap.L().Warn("token.store_get", zap.String("room", roomName), zap.Error(err))
	if svc.mirror == nil {
		return "", false
	}
	tok, ok, err = svc.mirror.Get(ctx, roomName)
	if err != nil {
		zap.L().Warn("token.mirror_get", zap.String("room", roomName), zap.Error(err))
		return "", false
	}
	return tok, ok
}

func (svc *tokenService) JoinOrCreate(ctx context.Context, roomName string) (JoinResult, error) {
	roomName = strings.TrimSpace(roomName)
	if roomName == "" {
		return JoinResult{}, ErrMissingRoomName
	}

	svc.joinMu.Lock()
	defer svc.joinMu.Unlock()

	rec, err := svc.store.Get(ctx, roomName)
	switch {
	case err == nil:
		tok := svc.cached(roomName)
		if tok == "" {
			tok = rec.Token
		}
		if tok == "" {
			// legacy row that escaped the startup repair
			tok = svc.gen()
			if err := svc.store.SetToken(ctx, roomName, tok); err != nil {
				zap.L().Error("token.repair", zap.String("room", roomName), zap.Error(err))
			}
			zap.L().Info("token repaired", zap.String("room", roomName))
		}
		svc.remember(roomName, tok)
		svc.mirrorSet(ctx, roomName, tok)
		return JoinResult{RoomName: roomName, Token: tok}, nil

	case errors.Is(err, roomstore.ErrRoomNotFound):
		tok := svc.gen()
		if err := svc.store.Create(ctx, roomName, tok); err != nil {
			zap.L().Error("token.create_room", zap.String("room", roomName), zap.Error(err))
			return JoinResult{}, fmt.Errorf("%w: %w", ErrStorageFailure, err)
		}
		svc.remember(roomName, tok)
		svc.mirrorSet(ctx, roomName, tok)
		zap.L().Info("room created", zap.String("room", roomName))
		return JoinResult{RoomName: roomName, Token: tok, IsNew: true}, nil

	default:
		zap.L().Error("token.get_room", zap.String("room", roomName), zap.Error(err))
		return JoinResult{}, fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}
}

func (svc *tokenService) cached(room string) string {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.tokens[room]
}

func (svc *tokenService) remember(room, tok string) {
	svc.mu.Lock()
	svc.tokens[room] = tok
	svc.mu.Unlock()
}

func (svc *tokenService) mirrorSet(ctx context.Context, room, tok string) {
	if svc.mirror == nil {
		return
	}
	if err := svc.mirror.Set(ctx, room, tok); err != nil {
		zap.L().Warn("token.mirror_set", zap.String("room", room), zap.Error(err))
	}
}
