package collab

import (
	"collabboard/internal/database/roomstore"
	"collabboard/internal/session"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

func notification(kind, msg string, users []string) session.Event {
	if users == nil {
		users = []string{}
	}
	return session.Event{
		Name: EventNotification,
		Body: Notification{Type: kind, Message: msg, UserList: users},
	}
}

// Admit registers the connection, syncs it with the room content, greets it
// and then tells the rest of the room.
func (svc *collabService) Admit(ctx context.Context, adm Admission, peer session.Peer) *session.Session {
	// The durable read happens outside the lock; Register only uses it when
	// this connection is the one activating the room. A write still queued
	// for storage is newer than the stored row.
	seed, active := svc.registry.Content(adm.Room)
	if !active {
		seed, active = svc.persist.Pending(adm.Room)
	}
	if !active {
		rec, err := svc.store.Get(ctx, adm.Room)
		switch {
		case err == nil:
			seed = rec.Content
		case errors.Is(err, roomstore.ErrRoomNotFound):
		default:
			zap.L().Error("collab.load_content", zap.String("room", adm.Room), zap.Error(err))
		}
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	joined := svc.registry.Register(peer.ID(), adm.Pseudo, adm.Room, peer, seed)

	svc.send(peer, session.Event{Name: EventUpdate, Body: joined.Content})
	svc.send(peer, notification(NotifyInitial, fmt.Sprintf("Welcome to room %s.", adm.Room), joined.Users))
	svc.broadcast(adm.Room, peer.ID(),
		notification(NotifyJoin, fmt.Sprintf("%s joined the session.", adm.Pseudo), joined.Users))

	zap.L().Info("collab.join",
		zap.String("conn", peer.ID()),
		zap.String("pseudo", adm.Pseudo),
		zap.String("room", adm.Room),
		zap.Int("users", len(joined.Users)),
	)
	return joined.Session
}

// Disconnect removes the connection and tells whoever is left. Unknown ids
// are ignored.
func (svc *collabService) Disconnect(connID string) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	s, users, ok := svc.registry.Unregister(connID)
	if !ok {
		return
	}
	svc.broadcast(s.Room, connID,
		notification(NotifyLeave, fmt.Sprintf("%s left the session.", s.Pseudo), users))

	zap.L().Info("collab.leave",
		zap.String("conn", connID),
		zap.String("pseudo", s.Pseudo),
		zap.String("room", s.Room),
		zap.Int("users", len(users)),
	)
}
