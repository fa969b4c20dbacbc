package ws

import (
	"collabboard/internal/services/collab"
	"collabboard/internal/session"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 25 * time.Second // must be < pongWait
	admitTimeout = 4 * time.Second
)

type WsServer struct {
	router    *Router
	collabSvc collab.ICollabService
	upgrader  websocket.Upgrader
	readLimit int64
}

// NewWsServer wires the update channel to the websocket protocol.
// maxContent sizes the frame read limit so that oversized updates still
// reach the update channel and are rejected there.
func NewWsServer(collabSvc collab.ICollabService, maxContent int) *WsServer {
	srv := &WsServer{
		router:    NewRouter(),
		collabSvc: collabSvc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true }, // dev-only
		},
		// JSON string escaping can inflate every character to \uXXXX.
		readLimit: int64(maxContent)*6 + 1024,
	}
	srv.registerHandlers() // ← all WS events configured here
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

// @Summary		Open a room connection
// @Description	Upgrades to a websocket once pseudo, room and token are accepted.
// @Tags			Rooms
// @Param			pseudo	query	string	true	"Display name"
// @Param			room	query	string	true	"Room name"
// @Param			token	query	string	true	"Room token from /api/join"
// @Success		101
// @Failure		400	{object}	ErrorBody
// @Failure		401	{object}	ErrorBody
// @Router			/ws [get]
func (s *WsServer) Handle(ginCtx *gin.Context) {
	var hs collab.Handshake
	_ = ginCtx.ShouldBindQuery(&hs)

	adm, err := s.collabSvc.Authenticate(ginCtx.Request.Context(), hs)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, collab.ErrAuthenticationRejected) {
			status = http.StatusUnauthorized
		}
		ginCtx.JSON(status, ErrorBody{Error: err.Error()})
		return
	}

	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(s.readLimit)

	// ─────────────────── Client admitted ────────────────────────
	conn := newClientConn(uuid.NewString(), rawConn)
	go conn.writePump(pingPeriod)

	ctx, cancel := context.WithTimeout(context.Background(), admitTimeout)
	s.collabSvc.Admit(ctx, adm, conn)
	cancel()

	go s.reader(conn, &ConnContext{ConnID: conn.id, Pseudo: adm.Pseudo, Room: adm.Room})
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) registerHandlers() {
	// 🔹 update ---------------------------------------------------------------
	Register(
		s.router,
		collab.EventUpdate,
		func(ctx context.Context, cc *ConnContext, content json.RawMessage) error {
			return s.collabSvc.SubmitUpdate(ctx, cc.ConnID, content)
		},
	)
}

func (s *WsServer) reader(conn *clientConn, cc *ConnContext) {
	defer func() {
		s.collabSvc.Disconnect(conn.id)
		conn.close()
	}()

	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(appData string) error {
		_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
		if rtt, ok := latencyFrom(appData, time.Now()); ok {
			_ = conn.Send(session.Event{Name: collab.EventPong, Body: collab.Pong{LatencyMs: rtt.Milliseconds()}})
		}
		return nil
	})

	for {
		_, data, err := conn.rawConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Debug("ws.read", zap.String("conn", conn.id), zap.Error(err))
			}
			return // client closed or errored
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			zap.L().Debug("ws.bad_frame", zap.String("conn", conn.id), zap.Error(err))
			continue
		}

		// Rejections are dropped: the sender gets no reply.
		if err := s.router.dispatch(context.Background(), cc, env); err != nil {
			logDropped(cc, env.Event, err)
		}
	}
}

func logDropped(cc *ConnContext, event string, err error) {
	fields := []zap.Field{
		zap.String("conn", cc.ConnID),
		zap.String("pseudo", cc.Pseudo),
		zap.String("room", cc.Room),
		zap.String("event", event),
		zap.Error(err),
	}
	switch {
	case errors.Is(err, collab.ErrRateLimited):
		zap.L().Debug("ws.update_throttled", fields...)
	case errors.Is(err, collab.ErrPayloadTooLarge), errors.Is(err, collab.ErrInvalidType):
		zap.L().Warn("ws.update_rejected", fields...)
	case errors.Is(err, errUnknownEvent):
		zap.L().Debug("ws.unknown_event", fields...)
	default:
		zap.L().Warn("ws.dispatch", fields...)
	}
}
