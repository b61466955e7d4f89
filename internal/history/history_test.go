// internal/history/history_test.go
package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherat/gatherat/internal/models"
)

func item(id string, at time.Time) models.RoomHistoryItem {
	return models.RoomHistoryItem{
		ID:         id,
		Question:   "question " + id,
		CreatedAt:  at,
		OptionType: models.OptionText,
		PollType:   models.PollSingleSelect,
	}
}

func TestAddAndRooms(t *testing.T) {
	s := New(t.TempDir())
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Add(item("a", base)))
	require.NoError(t, s.Add(item("b", base.Add(time.Hour))))

	rooms := s.Rooms()
	require.Len(t, rooms, 2)
	assert.Equal(t, "b", rooms[0].ID, "most recent first")
	assert.Equal(t, "a", rooms[1].ID)
}

func TestAddDeduplicates(t *testing.T) {
	s := New(t.TempDir())
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Add(item("a", base)))
	require.NoError(t, s.Add(item("b", base)))
	require.NoError(t, s.Add(item("a", base.Add(time.Hour))))

	rooms := s.Rooms()
	require.Len(t, rooms, 2, "revisiting replaces the old entry")
	assert.Equal(t, "a", rooms[0].ID)
}

func TestAddCapsAtTen(t *testing.T) {
	s := New(t.TempDir())
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 15; i++ {
		require.NoError(t, s.Add(item(fmt.Sprintf("r%02d", i), base.Add(time.Duration(i)*time.Minute))))
	}

	rooms := s.Rooms()
	require.Len(t, rooms, 10)
	assert.Equal(t, "r14", rooms[0].ID)
	assert.Equal(t, "r05", rooms[9].ID, "oldest entries fall off")
}

func TestDelete(t *testing.T) {
	s := New(t.TempDir())
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Add(item("a", base)))
	require.NoError(t, s.Add(item("b", base)))

	require.NoError(t, s.Delete("a"))
	rooms := s.Rooms()
	require.Len(t, rooms, 1)
	assert.Equal(t, "b", rooms[0].ID)

	require.NoError(t, s.Delete("never-there"))
	assert.Len(t, s.Rooms(), 1)
}

func TestClear(t *testing.T) {
	s := New(t.TempDir())

	require.NoError(t, s.Add(item("a", time.Now())))
	require.NoError(t, s.Clear())
	assert.Empty(t, s.Rooms())

	require.NoError(t, s.Clear(), "clearing an empty history is fine")
}

func TestPersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	require.NoError(t, New(dir).Add(item("a", base)))

	rooms := New(dir).Rooms()
	require.Len(t, rooms, 1)
	assert.Equal(t, "a", rooms[0].ID)
	assert.Equal(t, "question a", rooms[0].Question)
}
