// internal/models/user.go
package models

import "time"

// User is the durable anonymous identity behind votes and comments.
type User struct {
	UserID      string    `json:"userId,omitempty"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}
