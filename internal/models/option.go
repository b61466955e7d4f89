// internal/models/option.go
package models

import (
	"strings"
	"time"
)

// Option is one selectable choice within a room. VoteCount is a
// denormalized counter maintained exclusively by the vote ledger's
// transactions; Order is the append position at creation time and is
// never reused.
type Option struct {
	ID        string    `json:"id,omitempty"`
	Label     string    `json:"label"`
	VoteCount int       `json:"voteCount"`
	CreatedAt time.Time `json:"createdAt"`
	Order     int       `json:"order"`
}

// TimeRange splits a TimeRange-typed label into its start and end
// times. ok is false when the label does not carry a '|' separator.
func (o *Option) TimeRange() (start, end string, ok bool) {
	start, end, ok = strings.Cut(o.Label, "|")
	return
}

// OptionResult is an option enriched with the aggregates the registry
// derives from vote counts on every snapshot.
type OptionResult struct {
	Option
	Percentage float64 `json:"percentage"`
	IsWinner   bool    `json:"isWinner"`
}
