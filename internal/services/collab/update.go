package collab

import (
	"bytes"
	"collabboard/internal/session"
	"context"
	"encoding/json"
	"unicode/utf8"

	"go.uber.org/zap"
)

// SubmitUpdate applies a full-content update from connID. Rejected updates
// leave the room untouched and are not broadcast; the caller only logs them.
func (svc *collabService) SubmitUpdate(_ context.Context, connID string, raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return ErrInvalidType
	}
	var content string
	if err := json.Unmarshal(raw, &content); err != nil {
		return ErrInvalidType
	}
	if utf8.RuneCountInString(content) > svc.opts.MaxContentLength {
		return ErrPayloadTooLarge
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	s, ok := svc.registry.Session(connID)
	if !ok {
		return ErrUnknownConnection
	}
	if err := svc.registry.Touch(connID, svc.opts.Now(), svc.opts.UpdateInterval); err != nil {
		return err
	}

	svc.registry.SetContent(s.Room, content)
	svc.persist.Enqueue(s.Room, content)
	svc.counter.RecordEvent()
	svc.broadcast(s.Room, connID, session.Event{Name: EventUpdate, Body: content})

	zap.L().Debug("collab.update",
		zap.String("room", s.Room),
		zap.String("pseudo", s.Pseudo),
		zap.Int("length", len(content)),
	)
	return nil
}
