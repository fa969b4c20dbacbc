package roomstore

import (
	"collabboard/internal/database/db_client"
	"context"
	"database/sql"
	"errors"
)

// RoomRecord is the durable counterpart of a room.
type RoomRecord struct {
	RoomName string `json:"roomName"`
	Content  string `json:"content"`
	Token    string `json:"token"`
}

var ErrRoomNotFound = errors.New("room not found")

type IRoomStore interface {
	Get(ctx context.Context, roomName string) (*RoomRecord, error)
	Create(ctx context.Context, roomName, token string) error
	UpdateContent(ctx context.Context, roomName, content string) error
	SetToken(ctx context.Context, roomName, token string) error
	Tokens(ctx context.Context) (map[string]string, error)
	List(ctx context.Context) ([]RoomRecord, error)
}

type sqlRoomStore struct {
	db *sql.DB

	qGet, qCreate, qUpdate, qSetToken string
}

var _ IRoomStore = (*sqlRoomStore)(nil)

// New returns a store over db. driver is one of the db_client driver names
// and selects the placeholder style.
func New(db *sql.DB, driver string) IRoomStore {
	return &sqlRoomStore{
		db:      db,
		qGet:    db_client.Rebind(driver, `SELECT roomName, COALESCE(content, ''), COALESCE(token, '') FROM rooms WHERE roomName = ?`),
		qCreate: db_client.Rebind(driver, `INSERT INTO rooms (roomName, content, token) VALUES (?, '', ?) ON CONFLICT (roomName) DO NOTHING`),
		qUpdate: db_client.Rebind(driver, `
		  INSERT INTO rooms (roomName, content, token) VALUES (?, ?, '')
		  ON CONFLICT (roomName) DO UPDATE SET content = EXCLUDED.content`),
		qSetToken: db_client.Rebind(driver, `UPDATE rooms SET token = ? WHERE roomName = ?`),
	}
}

func (s *sqlRoomStore) Get(ctx context.Context, roomName string) (*RoomRecord, error) {
	rec := &RoomRecord{}
	err := s.db.QueryRowContext(ctx, s.qGet, roomName).Scan(&rec.RoomName, &rec.Content, &rec.Token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (s *sqlRoomStore) Create(ctx context.Context, roomName, token string) error {
	_, err := s.db.ExecContext(ctx, s.qCreate, roomName, token)
	return err
}

// UpdateContent upserts so that a write landing after an out-of-band delete
// still leaves the content on disk.
func (s *sqlRoomStore) UpdateContent(ctx context.Context, roomName, content string) error {
	_, err := s.db.ExecContext(ctx, s.qUpdate, roomName, content)
	return err
}

func (s *sqlRoomStore) SetToken(ctx context.Context, roomName, token string) error {
	res, err := s.db.ExecContext(ctx, s.qSetToken, token, roomName)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (s *sqlRoomStore) Tokens(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT roomName, token FROM rooms WHERE token <> ''`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, tok string
		if err := rows.Scan(&name, &tok); err != nil {
			return nil, err
		}
		out[name] = tok
	}
	return out, rows.Err()
}

func (s *sqlRoomStore) List(ctx context.Context) ([]RoomRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT roomName, COALESCE(content, ''), COALESCE(token, '') FROM rooms ORDER BY roomName`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []RoomRecord
	for rows.Next() {
		var r RoomRecord
		if err := rows.Scan(&r.RoomName, &r.Content, &r.Token); err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	return list, rows.Err()
}
