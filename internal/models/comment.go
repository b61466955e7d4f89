// internal/models/comment.go
package models

import "time"

// Comment is one entry in an option's discussion thread. Comments are
// append-only; they can be deleted but never edited.
type Comment struct {
	ID        string    `json:"id,omitempty"`
	OptionID  string    `json:"optionId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}
