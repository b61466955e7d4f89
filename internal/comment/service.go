// internal/comment/service.go
package comment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/gatherat/gatherat/internal/docstore"
	"github.com/gatherat/gatherat/internal/models"
)

// ErrValidation marks input rejected before any store call.
var ErrValidation = errors.New("comment: invalid input")

func commentsPath(roomID, optionID string) string {
	return "rooms/" + roomID + "/options/" + optionID + "/comments"
}
func commentPath(roomID, optionID, commentID string) string {
	return commentsPath(roomID, optionID) + "/" + commentID
}

// Service is the comment ledger: an append-only, chronologically
// ordered discussion thread per option.
type Service struct {
	store docstore.Store
}

func NewService(store docstore.Store) *Service {
	return &Service{store: store}
}

// CreateInput carries a new comment's attribution and body.
type CreateInput struct {
	OptionID string
	UserID   string
	UserName string
	Text     string
}

// Add appends a comment with a fresh id and server timestamp and
// returns the id.
func (s *Service) Add(ctx context.Context, roomID string, in CreateInput) (string, error) {
	if strings.TrimSpace(in.Text) == "" {
		return "", fmt.Errorf("%w: text is empty", ErrValidation)
	}
	id := s.store.NewID()
	c := models.Comment{
		OptionID:  in.OptionID,
		UserID:    in.UserID,
		UserName:  in.UserName,
		Text:      in.Text,
		CreatedAt: s.store.ServerTimestamp(ctx),
	}
	if err := s.store.Set(ctx, commentPath(roomID, in.OptionID, id), &c); err != nil {
		return "", fmt.Errorf("add comment: %w", err)
	}
	return id, nil
}

// Delete removes a comment outright. There is no tombstoning.
func (s *Service) Delete(ctx context.Context, roomID, optionID, commentID string) error {
	return s.store.Delete(ctx, commentPath(roomID, optionID, commentID))
}

// Watch is a live subscription to one option's comment thread.
type Watch struct {
	C    <-chan []models.Comment
	stop func()
}

func (w *Watch) Unsubscribe() { w.stop() }

// Watch streams the thread ordered by creation time ascending.
func (s *Service) Watch(ctx context.Context, roomID, optionID string) *Watch {
	cw := s.store.SubscribeCollection(ctx, commentsPath(roomID, optionID), docstore.OrderBy("createdAt"))
	out := make(chan []models.Comment)
	done := make(chan struct{})

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cw.Unsubscribe()
			close(done)
		})
	}

	go func() {
		defer close(out)
		for docs := range cw.C {
			comments := make([]models.Comment, 0, len(docs))
			for _, doc := range docs {
				var c models.Comment
				if err := doc.Decode(&c); err != nil {
					log.Warnf("comment: watch %s/%s: %v", roomID, optionID, err)
					continue
				}
				c.ID = doc.ID
				comments = append(comments, c)
			}
			select {
			case out <- comments:
			case <-done:
				return
			}
		}
	}()

	return &Watch{C: out, stop: stop}
}
