// internal/session/users.go
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/gatherat/gatherat/internal/docstore"
	"github.com/gatherat/gatherat/internal/models"
)

// ErrUserNotFound is returned when a user document is absent.
var ErrUserNotFound = errors.New("session: user not found")

func userPath(userID string) string { return "users/" + userID }

// Users mirrors anonymous identities into the document store so votes
// and comments can be attributed server-side.
type Users struct {
	store docstore.Store
}

func NewUsers(store docstore.Store) *Users {
	return &Users{store: store}
}

// Create writes a fresh user document and returns its generated id.
func (u *Users) Create(ctx context.Context, displayName string) (string, error) {
	userID := u.store.NewID()
	doc := models.User{
		DisplayName: displayName,
		CreatedAt:   u.store.ServerTimestamp(ctx),
	}
	if err := u.store.Set(ctx, userPath(userID), &doc); err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}
	return userID, nil
}

// Get reads a user document. Returns ErrUserNotFound when absent.
func (u *Users) Get(ctx context.Context, userID string) (*models.User, error) {
	var doc models.User
	found, err := u.store.Get(ctx, userPath(userID), &doc)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("user %s: %w", userID, ErrUserNotFound)
	}
	doc.UserID = userID
	return &doc, nil
}

// UpdateDisplayName changes the stored display name.
func (u *Users) UpdateDisplayName(ctx context.Context, userID, displayName string) error {
	err := u.store.Update(ctx, userPath(userID), map[string]any{
		"displayName": displayName,
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("user %s: %w", userID, ErrUserNotFound)
	}
	return err
}

// Delete removes the user document.
func (u *Users) Delete(ctx context.Context, userID string) error {
	return u.store.Delete(ctx, userPath(userID))
}
