// internal/session/manager.go
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/gatherat/gatherat/internal/models"
)

const sessionFile = "session.json"

// persistedSession is the on-disk shape of the device identity. It
// stands in for the browser's localStorage in the original client.
type persistedSession struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// Manager owns the durable anonymous identity for this device: a user
// id generated once and kept until the session is cleared, plus the
// chosen display name, mirrored into the store's users collection.
// Consumers observe identity changes through Watch.
type Manager struct {
	users *Users
	path  string

	mu       sync.Mutex
	state    persistedSession
	watchers map[int]chan *models.User
	nextID   int
}

// NewManager loads any persisted identity from dir.
func NewManager(dir string, users *Users) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("session dir: %w", err)
	}
	m := &Manager{
		users:    users,
		path:     filepath.Join(dir, sessionFile),
		watchers: make(map[int]chan *models.User),
	}
	b, err := os.ReadFile(m.path)
	if err == nil {
		if err := json.Unmarshal(b, &m.state); err != nil {
			log.Warnf("session: corrupt session file, starting fresh: %v", err)
			m.state = persistedSession{}
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read session: %w", err)
	}
	return m, nil
}

func (m *Manager) save() error {
	b, err := json.Marshal(m.state)
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, b, 0o600)
}

// UserID returns the stable device identity, generating and persisting
// a fresh v4 UUID on first use.
func (m *Manager) UserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.UserID == "" {
		m.state.UserID = uuid.NewString()
		if err := m.save(); err != nil {
			log.Warnf("session: persist user id: %v", err)
		}
	}
	return m.state.UserID
}

// DisplayName returns the stored display name, empty if none was set.
func (m *Manager) DisplayName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.DisplayName
}

// IsNew reports whether the device has not chosen a display name yet.
func (m *Manager) IsNew() bool {
	return m.DisplayName() == ""
}

// Current returns the identity, or nil while no display name is set.
func (m *Manager) Current() *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.DisplayName == "" {
		return nil
	}
	return &models.User{UserID: m.state.UserID, DisplayName: m.state.DisplayName}
}

// SetDisplayName creates the mirrored user document, adopts its
// generated id as the device identity, persists both locally and
// notifies watchers.
func (m *Manager) SetDisplayName(ctx context.Context, displayName string) error {
	userID, err := m.users.Create(ctx, displayName)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.state = persistedSession{UserID: userID, DisplayName: displayName}
	if err := m.save(); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("persist session: %w", err)
	}
	m.mu.Unlock()

	m.notify(&models.User{UserID: userID, DisplayName: displayName})
	return nil
}

// UpdateDisplayName renames the identity in place, keeping the user id.
func (m *Manager) UpdateDisplayName(ctx context.Context, displayName string) error {
	m.mu.Lock()
	userID := m.state.UserID
	m.mu.Unlock()
	if userID == "" {
		return fmt.Errorf("session: no identity to rename")
	}

	if err := m.users.UpdateDisplayName(ctx, userID, displayName); err != nil {
		return err
	}

	m.mu.Lock()
	m.state.DisplayName = displayName
	if err := m.save(); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("persist session: %w", err)
	}
	m.mu.Unlock()

	m.notify(&models.User{UserID: userID, DisplayName: displayName})
	return nil
}

// Clear tears the session down: the mirrored user document is deleted
// (best effort), the local file removed, and watchers see nil.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	userID := m.state.UserID
	m.mu.Unlock()

	if userID != "" {
		if err := m.users.Delete(ctx, userID); err != nil {
			log.Warnf("session: delete mirrored user %s: %v", userID, err)
		}
	}

	m.mu.Lock()
	m.state = persistedSession{}
	err := os.Remove(m.path)
	m.mu.Unlock()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear session: %w", err)
	}

	m.notify(nil)
	return nil
}

// UserWatch is a live subscription to identity changes.
type UserWatch struct {
	C    <-chan *models.User
	stop func()
}

func (w *UserWatch) Unsubscribe() { w.stop() }

// Watch delivers the current identity immediately, then again on every
// change. nil means no identity (new device or cleared session).
func (m *Manager) Watch() *UserWatch {
	ch := make(chan *models.User, 8)

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = ch
	var initial *models.User
	if m.state.DisplayName != "" {
		initial = &models.User{UserID: m.state.UserID, DisplayName: m.state.DisplayName}
	}
	m.mu.Unlock()

	ch <- initial

	var once sync.Once
	stop := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.watchers, id)
			m.mu.Unlock()
			close(ch)
		})
	}
	return &UserWatch{C: ch, stop: stop}
}

func (m *Manager) notify(u *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ch := range m.watchers {
		select {
		case ch <- u:
		default:
			log.Warnf("session: watcher %d is not keeping up, dropping update", id)
		}
	}
}
