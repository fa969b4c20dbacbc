package roomhandler

import (
	"collabboard/internal/database/roomstore"
	"collabboard/internal/services/token"
	"collabboard/internal/stats"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// StatusSource produces the /status payload.
type StatusSource interface {
	Snapshot() stats.Snapshot
}

type Handler struct {
	tokens     token.ITokenService
	status     StatusSource
	store      roomstore.IRoomStore
	previewLen int
}

func New(tokens token.ITokenService, status StatusSource, store roomstore.IRoomStore, previewLen int) *Handler {
	return &Handler{tokens: tokens, status: status, store: store, previewLen: previewLen}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/api/join", h.join)
	r.GET("/api/rooms", h.rooms)
	r.GET("/status", h.stat)
}

// @Summary		Join or create a room
// @Description	Returns the room token, creating the room on first use.
// @Tags			Rooms
// @Param			body	body		JoinRoomBody	true	"Room to join"
// @Success		200		{object}	token.JoinResult
// @Failure		400		{object}	ErrorResponse
// @Failure		500		{object}	ErrorResponse
// @Router			/api/join [post]
func (h *Handler) join(ginCtx *gin.Context) {
	var body JoinRoomBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: token.ErrMissingRoomName.Error()})
		return
	}

	res, err := h.tokens.JoinOrCreate(ginCtx.Request.Context(), body.RoomName)
	switch {
	case errors.Is(err, token.ErrMissingRoomName):
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	case err != nil:
		ginCtx.JSON(http.StatusInternalServerError, &ErrorResponse{Error: token.ErrStorageFailure.Error()})
		return
	}
	ginCtx.JSON(http.StatusOK, res)
}

// @Summary		Server status
// @Description	Active connections, active rooms with their users and a content preview, and updates since the last stats tick.
// @Tags			Monitoring
// @Success		200	{object}	stats.Snapshot
// @Router			/status [get]
func (h *Handler) stat(ginCtx *gin.Context) {
	ginCtx.JSON(http.StatusOK, h.status.Snapshot())
}

// @Summary		List stored rooms
// @Description	Every room with a durable record, connected or not. Tokens are never listed.
// @Tags			Rooms
// @Success		200	{array}		StoredRoom
// @Failure		500	{object}	ErrorResponse
// @Router			/api/rooms [get]
func (h *Handler) rooms(ginCtx *gin.Context) {
	recs, err := h.store.List(ginCtx.Request.Context())
	if err != nil {
		ginCtx.JSON(http.StatusInternalServerError, &ErrorResponse{Error: token.ErrStorageFailure.Error()})
		return
	}
	out := make([]StoredRoom, 0, len(recs))
	for _, r := range recs {
		out = append(out, StoredRoom{Name: r.RoomName, ContentPreview: stats.Preview(r.Content, h.previewLen)})
	}
	ginCtx.JSON(http.StatusOK, out)
}
