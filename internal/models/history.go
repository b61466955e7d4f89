// internal/models/history.go
package models

import "time"

// RoomHistoryItem is one entry in the device-local list of recently
// visited rooms. It is convenience state only, never authoritative.
type RoomHistoryItem struct {
	ID         string     `json:"id"`
	Question   string     `json:"question"`
	CreatedAt  time.Time  `json:"createdAt"`
	OptionType OptionType `json:"optionType"`
	PollType   PollType   `json:"pollType"`
}
