package db

import (
	"path/filepath"
	"testing"
	"time"

	"nbahighlights/nba"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache", "roster.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEmptyRoster(t *testing.T) {
	s := openTestStore(t)

	players, err := s.SelectPlayers()
	require.NoError(t, err)
	assert.Empty(t, players)

	_, ok, err := s.RosterFetchedAt("2024-25")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReplacePlayersKeepsOrder(t *testing.T) {
	s := openTestStore(t)
	fetched := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

	first := []nba.Player{{ID: 3, FullName: "C"}, {ID: 1, FullName: "A"}, {ID: 2, FullName: "B"}}
	require.NoError(t, s.ReplacePlayers("2024-25", first, fetched))

	players, err := s.SelectPlayers()
	require.NoError(t, err)
	assert.Equal(t, first, players)

	at, ok, err := s.RosterFetchedAt("2024-25")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, fetched.Equal(at))

	_, ok, err = s.RosterFetchedAt("2023-24")
	require.NoError(t, err)
	assert.False(t, ok, "cache for another season does not count")

	second := []nba.Player{{ID: 9, FullName: "Z"}}
	require.NoError(t, s.ReplacePlayers("2024-25", second, fetched.Add(time.Hour)))
	players, err = s.SelectPlayers()
	require.NoError(t, err)
	assert.Equal(t, second, players)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.ReplacePlayers("2024-25", []nba.Player{{ID: 1, FullName: "A"}}, time.Now()))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	players, err := s.SelectPlayers()
	require.NoError(t, err)
	assert.Len(t, players, 1)
}
