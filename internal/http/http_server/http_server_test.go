package http_server

import (
	"collabboard/internal/database/roomstore"
	"collabboard/internal/http/roomhandler"
	"collabboard/internal/services/collab"
	"collabboard/internal/services/token"
	"collabboard/internal/session"
	"collabboard/internal/stats"
	"collabboard/internal/syncdb"
	"collabboard/internal/ws"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := roomstore.NewMemory()
	tokens, err := token.NewTokenService(store, nil, token.DefaultLength)
	require.NoError(t, err)
	reg := session.NewRegistry()
	mon := stats.NewMonitor(reg, time.Minute, 50)
	svc := collab.NewCollabService(tokens, reg, store, syncdb.NewWriter(store, 8), mon, collab.Options{})

	h := NewHttpServer(context.Background(), 3000, ws.NewWsServer(svc, collab.DefaultMaxContentLength), roomhandler.New(tokens, mon, store, 50))
	engine := h.Engine()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/join", strings.NewReader(`{"roomName":"demo"}`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// no upgrade without credentials
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
