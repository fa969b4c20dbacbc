package roomstore

import (
	"collabboard/internal/database/db_client"
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := db_client.OpenSQLite(filepath.Join(t.TempDir(), "collabboard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLite_LegacyTableIsRepaired(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	_, err := db.Exec(`CREATE TABLE rooms (
		roomName TEXT PRIMARY KEY,
		content TEXT,
		token TEXT NOT NULL DEFAULT ''
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO rooms (roomName, content, token) VALUES ('legacy', 'kept', ''), ('nulled', NULL, 'tokN')`)
	require.NoError(t, err)

	require.NoError(t, db_client.Migrate(ctx, db, db_client.DriverSQLite))
	n, err := db_client.RepairTokens(ctx, db, db_client.DriverSQLite, func() string { return "fresh123" })
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	store := New(db, db_client.DriverSQLite)
	rec, err := store.Get(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, &RoomRecord{RoomName: "legacy", Content: "kept", Token: "fresh123"}, rec)

	rec, err = store.Get(ctx, "nulled")
	require.NoError(t, err)
	assert.Empty(t, rec.Content)

	toks, err := store.Tokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"legacy": "fresh123", "nulled": "tokN"}, toks)
}

func TestSQLite_LegacyTableWithoutToken(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	_, err := db.Exec(`CREATE TABLE rooms (roomName TEXT PRIMARY KEY, content TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO rooms (roomName, content) VALUES ('old', 'text')`)
	require.NoError(t, err)

	require.NoError(t, db_client.Migrate(ctx, db, db_client.DriverSQLite))
	// running twice is harmless
	require.NoError(t, db_client.Migrate(ctx, db, db_client.DriverSQLite))

	n, err := db_client.RepairTokens(ctx, db, db_client.DriverSQLite, func() string { return "tokOld" })
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, err := New(db, db_client.DriverSQLite).Get(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, "tokOld", rec.Token)
	assert.Equal(t, "text", rec.Content)
}

func TestSQLite_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	require.NoError(t, db_client.Migrate(ctx, db, db_client.DriverSQLite))
	store := New(db, db_client.DriverSQLite)

	require.NoError(t, store.Create(ctx, "demo", "tok1"))
	require.NoError(t, store.Create(ctx, "demo", "tok2"))
	require.NoError(t, store.UpdateContent(ctx, "demo", "hello"))
	require.NoError(t, store.UpdateContent(ctx, "orphan", "x"))

	rec, err := store.Get(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, &RoomRecord{RoomName: "demo", Content: "hello", Token: "tok1"}, rec)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "orphan", list[1].RoomName)
	assert.Empty(t, list[1].Token)

	assert.ErrorIs(t, store.SetToken(ctx, "ghost", "t"), ErrRoomNotFound)
}
