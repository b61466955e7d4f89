// internal/history/history.go
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gatherat/gatherat/internal/models"
)

const (
	historyFile = "room_history.json"

	// maxRooms caps the list at the most recent visits.
	maxRooms = 10
)

// Store keeps a device-local, most-recent-first list of visited rooms
// for convenience navigation. It is not authoritative: rooms listed
// here may have been deleted.
type Store struct {
	mu   sync.Mutex
	path string
}

func New(dir string) *Store {
	return &Store{path: filepath.Join(dir, historyFile)}
}

func (s *Store) load() []models.RoomHistoryItem {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var rooms []models.RoomHistoryItem
	if err := json.Unmarshal(b, &rooms); err != nil {
		return nil
	}
	return rooms
}

func (s *Store) save(rooms []models.RoomHistoryItem) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("history dir: %w", err)
	}
	b, err := json.Marshal(rooms)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, b, 0o600)
}

// Add records a visit, moving an already-known room to the front and
// trimming the list to the cap.
func (s *Store) Add(item models.RoomHistoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := s.load()
	kept := make([]models.RoomHistoryItem, 0, len(rooms)+1)
	kept = append(kept, item)
	for _, r := range rooms {
		if r.ID != item.ID {
			kept = append(kept, r)
		}
	}
	if len(kept) > maxRooms {
		kept = kept[:maxRooms]
	}
	return s.save(kept)
}

// Rooms returns the history, most recent first.
func (s *Store) Rooms() []models.RoomHistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := s.load()
	sort.SliceStable(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.After(rooms[j].CreatedAt)
	})
	return rooms
}

// Delete drops one room from the history.
func (s *Store) Delete(roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := s.load()
	kept := make([]models.RoomHistoryItem, 0, len(rooms))
	for _, r := range rooms {
		if r.ID != roomID {
			kept = append(kept, r)
		}
	}
	return s.save(kept)
}

// Clear wipes the history file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
