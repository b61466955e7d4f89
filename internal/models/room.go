// internal/models/room.go
package models

import "time"

// RoomStatus gates voting and roster mutation for a room.
// The values are persisted verbatim in the room document.
type RoomStatus string

const (
	StatusPaused     RoomStatus = "Paused"
	StatusInProgress RoomStatus = "InProgress"
	StatusEnded      RoomStatus = "Ended"
)

// OptionType describes how option labels should be interpreted.
// Time labels are bare "HH:mm" strings; TimeRange labels join two of
// them with a '|' separator, e.g. "18:00|20:00".
type OptionType string

const (
	OptionText      OptionType = "Text"
	OptionTime      OptionType = "Time"
	OptionTimeRange OptionType = "TimeRange"
)

// PollType selects between exclusive-choice and toggle-set voting.
type PollType string

const (
	PollSingleSelect PollType = "SS"
	PollMultiSelect  PollType = "MS"
)

// Room is a single poll/scheduling session. Participants holds display
// names, not user ids. Status and PollType are optional for rooms
// written before those fields existed.
type Room struct {
	ID           string     `json:"id,omitempty"`
	Question     string     `json:"question"`
	Timezone     string     `json:"timezone,omitempty"`
	Participants []string   `json:"participants"`
	CreatedBy    string     `json:"createdBy"`
	Status       RoomStatus `json:"status,omitempty"`
	OptionType   OptionType `json:"optionType"`
	PollType     PollType   `json:"pollType,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// EffectiveStatus treats rooms predating the status field as in progress.
func (r *Room) EffectiveStatus() RoomStatus {
	if r.Status == "" {
		return StatusInProgress
	}
	return r.Status
}

// Ended reports whether voting has closed for this room.
func (r *Room) Ended() bool {
	return r.EffectiveStatus() == StatusEnded
}

// EffectivePollType treats rooms predating the pollType field as single select.
func (r *Room) EffectivePollType() PollType {
	if r.PollType == "" {
		return PollSingleSelect
	}
	return r.PollType
}

// HasParticipant reports whether displayName is already on the roster.
func (r *Room) HasParticipant(displayName string) bool {
	for _, p := range r.Participants {
		if p == displayName {
			return true
		}
	}
	return false
}
