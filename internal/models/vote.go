// internal/models/vote.go
package models

import (
	"encoding/json"
	"time"
)

// Vote is the per-user record of the options a user currently has
// selected in a room. The document is keyed by user id, so UserID is
// populated from the document path rather than the payload.
//
// An earlier schema stored a single "optionId" string. Decoding
// upgrades that shape to a one-element OptionIDs set; encoding always
// writes the array shape and never the legacy field.
type Vote struct {
	UserID      string    `json:"-"`
	OptionIDs   []string  `json:"optionIds"`
	DisplayName string    `json:"displayName"`
	VotedAt     time.Time `json:"votedAt"`
}

func (v *Vote) UnmarshalJSON(b []byte) error {
	var raw struct {
		OptionIDs   []string  `json:"optionIds"`
		OptionID    string    `json:"optionId"` // legacy single-select shape
		DisplayName string    `json:"displayName"`
		VotedAt     time.Time `json:"votedAt"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	v.OptionIDs = raw.OptionIDs
	if len(v.OptionIDs) == 0 && raw.OptionID != "" {
		v.OptionIDs = []string{raw.OptionID}
	}
	v.DisplayName = raw.DisplayName
	v.VotedAt = raw.VotedAt
	return nil
}

// Has reports whether optionID is in the user's current selection set.
func (v *Vote) Has(optionID string) bool {
	for _, id := range v.OptionIDs {
		if id == optionID {
			return true
		}
	}
	return false
}
