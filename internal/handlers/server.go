// internal/handlers/server.go
package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/gatherat/gatherat/internal/comment"
	"github.com/gatherat/gatherat/internal/docstore"
	"github.com/gatherat/gatherat/internal/option"
	"github.com/gatherat/gatherat/internal/room"
	"github.com/gatherat/gatherat/internal/session"
	"github.com/gatherat/gatherat/internal/vote"
)

// Server wires the domain services behind the HTTP surface.
type Server struct {
	Logger   *logrus.Logger
	Rooms    *room.Service
	Options  *option.Service
	Votes    *vote.Service
	Comments *comment.Service
	Users    *session.Users
}

func NewServer(logger *logrus.Logger, store docstore.Store) *Server {
	return &Server{
		Logger:   logger,
		Rooms:    room.NewService(store),
		Options:  option.NewService(store),
		Votes:    vote.NewService(store),
		Comments: comment.NewService(store),
		Users:    session.NewUsers(store),
	}
}

// Routes builds the request mux. Logging middleware is applied by the
// caller.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /session", s.ClaimName)
	mux.HandleFunc("GET /session", s.WhoAmI)

	mux.HandleFunc("POST /rooms", s.CreateRoom)
	mux.HandleFunc("GET /rooms/{roomID}", s.GetRoom)
	mux.HandleFunc("DELETE /rooms/{roomID}", s.DeleteRoom)
	mux.HandleFunc("POST /rooms/{roomID}/join", s.JoinRoom)
	mux.HandleFunc("POST /rooms/{roomID}/leave", s.LeaveRoom)
	mux.HandleFunc("POST /rooms/{roomID}/status", s.UpdateStatus)
	mux.HandleFunc("POST /rooms/{roomID}/vote", s.CastVote)
	mux.HandleFunc("POST /rooms/{roomID}/options", s.AddOption)
	mux.HandleFunc("POST /rooms/{roomID}/options/{optionID}/comments", s.AddComment)
	mux.HandleFunc("DELETE /rooms/{roomID}/options/{optionID}/comments/{commentID}", s.DeleteComment)

	mux.HandleFunc("GET /rooms/{roomID}/ws", s.RoomStream)
	mux.HandleFunc("GET /rooms/{roomID}/options/{optionID}/comments/ws", s.CommentStream)

	return mux
}
