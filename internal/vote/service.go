// internal/vote/service.go
package vote

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/gatherat/gatherat/internal/docstore"
	"github.com/gatherat/gatherat/internal/models"
)

var (
	// ErrVotingClosed is returned when a vote targets an ended room.
	ErrVotingClosed = errors.New("vote: voting has ended for this room")
	// ErrOptionNotFound is returned when a vote targets a missing option.
	ErrOptionNotFound = errors.New("vote: option does not exist")
)

func roomPath(roomID string) string { return "rooms/" + roomID }
func optionPath(roomID, optionID string) string {
	return "rooms/" + roomID + "/options/" + optionID
}
func votesPath(roomID string) string { return "rooms/" + roomID + "/votes" }
func votePath(roomID, userID string) string {
	return "rooms/" + roomID + "/votes/" + userID
}

// Service is the vote ledger. It owns the only code path that mutates
// option vote counts or vote documents, always inside one store
// transaction so the denormalized counters and the per-user selection
// sets can never diverge.
type Service struct {
	store docstore.Store
}

func NewService(store docstore.Store) *Service {
	return &Service{store: store}
}

// heldOption is a previously-selected option read during the
// transaction's read phase.
type heldOption struct {
	id    string
	opt   models.Option
	found bool
}

func floorDecrement(count int) int {
	if count <= 0 {
		return 0
	}
	return count - 1
}

// Cast toggles optionID for the user inside a single transaction.
//
// Single select: clicking the held option clears the selection;
// clicking a different one moves the whole selection to it. Multi
// select: the clicked option is added to or removed from the set. In
// every case the counters of all affected options move in the same
// commit as the vote document, decrements floor at zero, and an empty
// resulting set deletes the vote document instead of writing it.
//
// The transaction body completes all reads before its first write,
// per the backing engine's optimistic-concurrency contract, and is
// retried wholesale on conflicts.
func (s *Service) Cast(ctx context.Context, roomID, optionID, userID, displayName string, pollType models.PollType) error {
	if pollType == "" {
		pollType = models.PollSingleSelect
	}
	return s.store.RunTransaction(ctx, func(tx docstore.Txn) error {
		// Read phase.
		var r models.Room
		roomFound, err := tx.Get(roomPath(roomID), &r)
		if err != nil {
			return err
		}
		if roomFound && r.Ended() {
			return ErrVotingClosed
		}

		var current models.Vote
		haveVote, err := tx.Get(votePath(roomID, userID), &current)
		if err != nil {
			return err
		}

		var clicked models.Option
		found, err := tx.Get(optionPath(roomID, optionID), &clicked)
		if err != nil {
			return err
		}
		if !found {
			return ErrOptionNotFound
		}

		// In single-select mode every other held option is about to be
		// released, so read them all. Steady state holds at most one,
		// but the protocol tolerates drifted sets.
		var released []heldOption
		if haveVote && pollType == models.PollSingleSelect {
			for _, id := range current.OptionIDs {
				if id == optionID {
					continue
				}
				var opt models.Option
				f, err := tx.Get(optionPath(roomID, id), &opt)
				if err != nil {
					return err
				}
				released = append(released, heldOption{id: id, opt: opt, found: f})
			}
		}

		// Compute and write phase. No reads from here on.
		votedAt := s.store.ServerTimestamp(ctx)
		clickedHeld := haveVote && current.Has(optionID)

		if pollType == models.PollMultiSelect {
			if clickedHeld {
				clicked.VoteCount = floorDecrement(clicked.VoteCount)
				if err := tx.Set(optionPath(roomID, optionID), &clicked); err != nil {
					return err
				}
				remaining := without(current.OptionIDs, optionID)
				if len(remaining) == 0 {
					tx.Delete(votePath(roomID, userID))
					return nil
				}
				return tx.Set(votePath(roomID, userID), &models.Vote{
					OptionIDs:   remaining,
					DisplayName: displayName,
					VotedAt:     votedAt,
				})
			}
			clicked.VoteCount++
			if err := tx.Set(optionPath(roomID, optionID), &clicked); err != nil {
				return err
			}
			return tx.Set(votePath(roomID, userID), &models.Vote{
				OptionIDs:   append(current.OptionIDs, optionID),
				DisplayName: displayName,
				VotedAt:     votedAt,
			})
		}

		// Single select. Every previously held option is released
		// either way, keeping its counter in step with the vote
		// document written below.
		for _, h := range released {
			if !h.found {
				continue
			}
			h.opt.VoteCount = floorDecrement(h.opt.VoteCount)
			if err := tx.Set(optionPath(roomID, h.id), &h.opt); err != nil {
				return err
			}
		}

		if clickedHeld {
			// Toggle off: back to no vote.
			clicked.VoteCount = floorDecrement(clicked.VoteCount)
			if err := tx.Set(optionPath(roomID, optionID), &clicked); err != nil {
				return err
			}
			tx.Delete(votePath(roomID, userID))
			return nil
		}

		clicked.VoteCount++
		if err := tx.Set(optionPath(roomID, optionID), &clicked); err != nil {
			return err
		}
		return tx.Set(votePath(roomID, userID), &models.Vote{
			OptionIDs:   []string{optionID},
			DisplayName: displayName,
			VotedAt:     votedAt,
		})
	})
}

// Remove clears the user's vote when they leave the room: every held
// option's counter is decremented (floor zero) and the vote document
// is deleted, atomically. No-ops when the room has ended or no vote
// exists.
func (s *Service) Remove(ctx context.Context, roomID, userID string) error {
	var r models.Room
	roomFound, err := s.store.Get(ctx, roomPath(roomID), &r)
	if err != nil {
		return err
	}
	if roomFound && r.Ended() {
		log.Debugf("vote: remove for %s ignored, voting has ended", roomID)
		return nil
	}

	return s.store.RunTransaction(ctx, func(tx docstore.Txn) error {
		var current models.Vote
		haveVote, err := tx.Get(votePath(roomID, userID), &current)
		if err != nil {
			return err
		}
		if !haveVote {
			return nil
		}

		var held []heldOption
		for _, id := range current.OptionIDs {
			var opt models.Option
			f, err := tx.Get(optionPath(roomID, id), &opt)
			if err != nil {
				return err
			}
			held = append(held, heldOption{id: id, opt: opt, found: f})
		}

		for _, h := range held {
			if !h.found {
				continue
			}
			h.opt.VoteCount = floorDecrement(h.opt.VoteCount)
			if err := tx.Set(optionPath(roomID, h.id), &h.opt); err != nil {
				return err
			}
		}
		tx.Delete(votePath(roomID, userID))
		return nil
	})
}

func without(ids []string, id string) []string {
	kept := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			kept = append(kept, v)
		}
	}
	return kept
}

// UserWatch is a live subscription to one user's selection set. An
// empty set means the user holds no vote.
type UserWatch struct {
	C    <-chan []string
	stop func()
}

func (w *UserWatch) Unsubscribe() { w.stop() }

// WatchUser streams the user's current selection set. Legacy
// single-option documents surface as a one-element set without any
// write to the store.
func (s *Service) WatchUser(ctx context.Context, roomID, userID string) *UserWatch {
	dw := s.store.Subscribe(ctx, votePath(roomID, userID))
	out := make(chan []string)
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
			selection := []string{}
			if doc != nil {
				var v models.Vote
				if err := doc.Decode(&v); err != nil {
					log.Warnf("vote: watch user %s in %s: %v", userID, roomID, err)
					continue
				}
				// A drifted document without an optionIds array still
				// surfaces as an empty set, never nil.
				if len(v.OptionIDs) > 0 {
					selection = v.OptionIDs
				}
			}
			select {
			case out <- selection:
			case <-done:
				return
			}
		}
	}()

	return &UserWatch{C: out, stop: stop}
}

// AllWatch is a live subscription to every vote document in a room.
type AllWatch struct {
	C    <-chan []models.Vote
	stop func()
}

func (w *AllWatch) Unsubscribe() { w.stop() }

// WatchAll streams the raw vote documents for consumers that aggregate
// or display per-voter state.
func (s *Service) WatchAll(ctx context.Context, roomID string) *AllWatch {
	cw := s.store.SubscribeCollection(ctx, votesPath(roomID))
	out := make(chan []models.Vote)
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
			votes := make([]models.Vote, 0, len(docs))
			for _, doc := range docs {
				var v models.Vote
				if err := doc.Decode(&v); err != nil {
					log.Warnf("vote: watch all for %s: %v", roomID, err)
					continue
				}
				v.UserID = doc.ID
				votes = append(votes, v)
			}
			select {
			case out <- votes:
			case <-done:
				return
			}
		}
	}()

	return &AllWatch{C: out, stop: stop}
}
