// internal/room/service.go
package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/gatherat/gatherat/internal/docstore"
	"github.com/gatherat/gatherat/internal/models"
)

var (
	// ErrValidation marks input rejected before any store call.
	ErrValidation = errors.New("room: invalid input")
	// ErrNotFound marks operations against a room that does not exist.
	ErrNotFound = errors.New("room: not found")
)

func roomPath(roomID string) string { return "rooms/" + roomID }
func optionsPath(roomID string) string { return "rooms/" + roomID + "/options" }
func optionPath(roomID, optionID string) string {
	return "rooms/" + roomID + "/options/" + optionID
}
func commentsPath(roomID, optionID string) string {
	return "rooms/" + roomID + "/options/" + optionID + "/comments"
}
func votesPath(roomID string) string { return "rooms/" + roomID + "/votes" }

// Service is the room directory: creation, existence, lifecycle status,
// participant roster and cascade deletion.
type Service struct {
	store docstore.Store
}

func NewService(store docstore.Store) *Service {
	return &Service{store: store}
}

// CreateInput carries everything needed to open a new room.
type CreateInput struct {
	Question   string
	Timezone   string
	Options    []string
	OptionType models.OptionType
	PollType   models.PollType
	CreatedBy  string
}

// Create allocates a room id and atomically writes the room document
// plus one option document per label (order = input index, zero
// votes). Nothing is written if any part fails.
func (s *Service) Create(ctx context.Context, in CreateInput) (string, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return "", fmt.Errorf("%w: question is required", ErrValidation)
	}
	if len(in.Options) == 0 {
		return "", fmt.Errorf("%w: at least one option is required", ErrValidation)
	}
	labels := make([]string, len(in.Options))
	for i, label := range in.Options {
		labels[i] = strings.TrimSpace(label)
		if labels[i] == "" {
			return "", fmt.Errorf("%w: option label is empty", ErrValidation)
		}
	}

	roomID := s.store.NewID()
	now := s.store.ServerTimestamp(ctx)
	doc := models.Room{
		Question:     question,
		Timezone:     in.Timezone,
		Participants: []string{},
		CreatedBy:    in.CreatedBy,
		Status:       models.StatusInProgress,
		OptionType:   in.OptionType,
		PollType:     in.PollType,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.store.RunTransaction(ctx, func(tx docstore.Txn) error {
		if err := tx.Set(roomPath(roomID), &doc); err != nil {
			return err
		}
		for i, label := range labels {
			opt := models.Option{
				Label:     label,
				VoteCount: 0,
				CreatedAt: now,
				Order:     i,
			}
			if err := tx.Set(optionPath(roomID, s.store.NewID()), &opt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("create room: %w", err)
	}
	return roomID, nil
}

// Exists probes for the room document without side effects.
func (s *Service) Exists(ctx context.Context, roomID string) (bool, error) {
	var raw json.RawMessage
	return s.store.Get(ctx, roomPath(roomID), &raw)
}

// Get reads the room once. Returns ErrNotFound when absent.
func (s *Service) Get(ctx context.Context, roomID string) (*models.Room, error) {
	var r models.Room
	found, err := s.store.Get(ctx, roomPath(roomID), &r)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("room %s: %w", roomID, ErrNotFound)
	}
	r.ID = roomID
	return &r, nil
}

// Watch is a live subscription to one room. A nil delivery means the
// room is absent or was deleted; consumers must treat it as gone.
type Watch struct {
	C    <-chan *models.Room
	stop func()
}

func (w *Watch) Unsubscribe() { w.stop() }

// Watch streams the room document.
func (s *Service) Watch(ctx context.Context, roomID string) *Watch {
	dw := s.store.Subscribe(ctx, roomPath(roomID))
	out := make(chan *models.Room)
	done := make(chan struct{})

	var once sync.Once
	stop := func() {
		once.Do(func() {
			dw.Unsubscribe()
			close(done)
		})
	}

	go func() {
		defer close(out)
		for doc := range dw.C {
			var r *models.Room
			if doc != nil {
				r = &models.Room{}
				if err := doc.Decode(r); err != nil {
					log.Warnf("room: watch %s: %v", roomID, err)
					continue
				}
				r.ID = doc.ID
			}
			select {
			case out <- r:
			case <-done:
				return
			}
		}
	}()

	return &Watch{C: out, stop: stop}
}

// Join adds displayName to the participant roster. Re-adding a present
// name is a no-op, and ended rooms freeze their rosters silently.
func (s *Service) Join(ctx context.Context, roomID, displayName string) error {
	return s.store.RunTransaction(ctx, func(tx docstore.Txn) error {
		var r models.Room
		found, err := tx.Get(roomPath(roomID), &r)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("join room %s: %w", roomID, ErrNotFound)
		}
		if r.Ended() {
			log.Debugf("room: join %s ignored, voting has ended", roomID)
			return nil
		}
		if r.HasParticipant(displayName) {
			return nil
		}
		r.Participants = append(r.Participants, displayName)
		return tx.Set(roomPath(roomID), &r)
	})
}

// Leave removes displayName from the roster. Same ended-room and
// idempotence semantics as Join.
func (s *Service) Leave(ctx context.Context, roomID, displayName string) error {
	return s.store.RunTransaction(ctx, func(tx docstore.Txn) error {
		var r models.Room
		found, err := tx.Get(roomPath(roomID), &r)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("leave room %s: %w", roomID, ErrNotFound)
		}
		if r.Ended() {
			log.Debugf("room: leave %s ignored, voting has ended", roomID)
			return nil
		}
		if !r.HasParticipant(displayName) {
			return nil
		}
		kept := make([]string, 0, len(r.Participants))
		for _, p := range r.Participants {
			if p != displayName {
				kept = append(kept, p)
			}
		}
		r.Participants = kept
		return tx.Set(roomPath(roomID), &r)
	})
}

// UpdateStatus sets the lifecycle status and refreshes updatedAt.
// Authorization (creator-only) is the caller's responsibility.
func (s *Service) UpdateStatus(ctx context.Context, roomID string, status models.RoomStatus) error {
	switch status {
	case models.StatusPaused, models.StatusInProgress, models.StatusEnded:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	err := s.store.Update(ctx, roomPath(roomID), map[string]any{
		"status":    status,
		"updatedAt": s.store.ServerTimestamp(ctx),
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("room %s: %w", roomID, ErrNotFound)
	}
	return err
}

// Delete cascades over the room's sub-resources: every comment, every
// option, every vote, then the room document itself. The cascade is
// not transactional; any failure propagates immediately and leaves the
// room document in place so the caller can see the partial state.
func (s *Service) Delete(ctx context.Context, roomID string) error {
	opts, err := s.store.Query(ctx, optionsPath(roomID))
	if err != nil {
		return fmt.Errorf("delete room %s: %w", roomID, err)
	}
	for _, opt := range opts {
		comments, err := s.store.Query(ctx, commentsPath(roomID, opt.ID))
		if err != nil {
			return fmt.Errorf("delete room %s: %w", roomID, err)
		}
		for _, c := range comments {
			if err := s.store.Delete(ctx, c.Path); err != nil {
				return fmt.Errorf("delete room %s: %w", roomID, err)
			}
		}
		if err := s.store.Delete(ctx, opt.Path); err != nil {
			return fmt.Errorf("delete room %s: %w", roomID, err)
		}
	}

	votes, err := s.store.Query(ctx, votesPath(roomID))
	if err != nil {
		return fmt.Errorf("delete room %s: %w", roomID, err)
	}
	for _, v := range votes {
		if err := s.store.Delete(ctx, v.Path); err != nil {
			return fmt.Errorf("delete room %s: %w", roomID, err)
		}
	}

	if err := s.store.Delete(ctx, roomPath(roomID)); err != nil {
		return fmt.Errorf("delete room %s: %w", roomID, err)
	}
	return nil
}
