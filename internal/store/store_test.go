package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pedro/internal/session"
)

func TestOpen_CreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pedro.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	assert.FileExists(t, path)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pedro.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, committedSession(t, "s-1").State()))
	require.NoError(t, s.Close())

	for range 3 {
		s, err = Open(path)
		require.NoError(t, err)
		require.NoError(t, s.Close())
	}

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Load(ctx, "s-1")
	require.NoError(t, err)

	for _, table := range []string{"sessions", "events", "commits"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}
	version, err := s.pragma("user_version")
	require.NoError(t, err)
	assert.Equal(t, "2", version)
}

func TestOpen_MigratesOlderDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pedro.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.db.Exec("DROP INDEX idx_events_session_type")
	require.NoError(t, err)
	_, err = s.db.Exec("PRAGMA user_version = 1")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	var name string
	err = s.db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'index' AND name = 'idx_events_session_type'").Scan(&name)
	require.NoError(t, err)
	version, err := s.pragma("user_version")
	require.NoError(t, err)
	assert.Equal(t, "2", version)
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	fresh, err := session.New("s-1", "price orders", committedSession(t, "x").Scope())
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, fresh.State()))
	got, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/pedro.db")
	assert.Error(t, err)
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{}
	assert.NoError(t, s.Close())
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name string
		want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		got, err := s.pragma(tt.name)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.name)
	}
}
