// internal/option/service.go
package option

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/gatherat/gatherat/internal/docstore"
	"github.com/gatherat/gatherat/internal/models"
)

// ErrValidation marks input rejected before any store call.
var ErrValidation = errors.New("option: invalid input")

func optionsPath(roomID string) string { return "rooms/" + roomID + "/options" }
func optionPath(roomID, optionID string) string {
	return "rooms/" + roomID + "/options/" + optionID
}

// Service is the option registry: an append-only ordered list of
// vote-able options per room, with percentages and winner flags
// derived from vote counts on every snapshot.
type Service struct {
	store docstore.Store
}

func NewService(store docstore.Store) *Service {
	return &Service{store: store}
}

// Add appends a new option with zero votes. Its order is one past the
// highest existing order, so order values are never reused even after
// deletions.
func (s *Service) Add(ctx context.Context, roomID, label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return fmt.Errorf("%w: label is empty", ErrValidation)
	}

	existing, err := s.store.Query(ctx, optionsPath(roomID))
	if err != nil {
		return fmt.Errorf("add option: %w", err)
	}
	nextOrder := 0
	for _, doc := range existing {
		var opt models.Option
		if err := doc.Decode(&opt); err != nil {
			continue
		}
		if opt.Order >= nextOrder {
			nextOrder = opt.Order + 1
		}
	}

	opt := models.Option{
		Label:     label,
		VoteCount: 0,
		CreatedAt: s.store.ServerTimestamp(ctx),
		Order:     nextOrder,
	}
	if err := s.store.Set(ctx, optionPath(roomID, s.store.NewID()), &opt); err != nil {
		return fmt.Errorf("add option: %w", err)
	}
	return nil
}

// Results derives the display aggregates for a full option set:
// percentage of total votes (0 when nobody voted), the winner flag
// (max count and at least one vote; all tied leaders win), and the
// display order: voteCount descending, ties broken by original
// insertion order. The persisted order field is untouched.
func Results(options []models.Option) []models.OptionResult {
	totalVotes := 0
	maxVotes := 0
	for _, opt := range options {
		totalVotes += opt.VoteCount
		if opt.VoteCount > maxVotes {
			maxVotes = opt.VoteCount
		}
	}

	results := make([]models.OptionResult, len(options))
	for i, opt := range options {
		pct := 0.0
		if totalVotes > 0 {
			pct = float64(opt.VoteCount) / float64(totalVotes) * 100
		}
		results[i] = models.OptionResult{
			Option:     opt,
			Percentage: pct,
			IsWinner:   opt.VoteCount > 0 && opt.VoteCount == maxVotes,
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].VoteCount != results[j].VoteCount {
			return results[i].VoteCount > results[j].VoteCount
		}
		return results[i].Order < results[j].Order
	})
	return results
}

// Watch is a live subscription to a room's derived option results.
type Watch struct {
	C    <-chan []models.OptionResult
	stop func()
}

func (w *Watch) Unsubscribe() { w.stop() }

// Watch streams the option set, recomputing Results on every
// underlying snapshot.
func (s *Service) Watch(ctx context.Context, roomID string) *Watch {
	cw := s.store.SubscribeCollection(ctx, optionsPath(roomID), docstore.OrderBy("order"))
	out := make(chan []models.OptionResult)
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
			options := make([]models.Option, 0, len(docs))
			for _, doc := range docs {
				var opt models.Option
				if err := doc.Decode(&opt); err != nil {
					log.Warnf("option: watch %s: %v", roomID, err)
					continue
				}
				opt.ID = doc.ID
				options = append(options, opt)
			}
			select {
			case out <- Results(options):
			case <-done:
				return
			}
		}
	}()

	return &Watch{C: out, stop: stop}
}
