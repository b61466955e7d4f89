// internal/handlers/stream.go
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/gatherat/gatherat/internal/middleware"
	"github.com/gatherat/gatherat/internal/models"
)

// Custom WebSocket close codes used by the live stream handlers.
const (
	BadSubprotocolError = 3000 // Client connected with an unsupported subprotocol.
	RoomGoneError       = 3001 // The room was deleted while the stream was open.
)

// errWatchClosed ends a stream whose underlying watch shut down.
var errWatchClosed = errors.New("watch closed")

// streamMessage is one push on the room stream. Exactly one payload
// field is set, matching Type.
type streamMessage struct {
	Type     string                `json:"type"`
	Room     *models.Room          `json:"room,omitempty"`
	Options  []models.OptionResult `json:"options,omitempty"`
	Votes    []models.Vote         `json:"votes,omitempty"`
	Comments []models.Comment      `json:"comments,omitempty"`
}

// RoomStream upgrades to a WebSocket and multiplexes the room's three
// live snapshots (room document, derived option results, raw votes)
// onto it. Streams are independent; the client reconciles per message
// and must not assume cross-stream consistency.
func (s *Server) RoomStream(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomID")

	exists, err := s.Rooms.Exists(r.Context(), roomID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !exists {
		http.Error(w, "room does not exist", http.StatusNotFound)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{"room"},
		OriginPatterns: []string{"*"}, // Adjust in production
	})
	if err != nil {
		s.Logger.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != "room" {
		c.Close(BadSubprotocolError, "client must speak the room subprotocol")
		return
	}

	middleware.LogStreamOpen(s.Logger, r.RemoteAddr, roomID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Drain client frames so pings and close frames are processed.
	go func() {
		for {
			if _, _, err := c.Read(ctx); err != nil {
				cancel()
				return
			}
		}
	}()

	roomWatch := s.Rooms.Watch(ctx, roomID)
	defer roomWatch.Unsubscribe()
	optionWatch := s.Options.Watch(ctx, roomID)
	defer optionWatch.Unsubscribe()
	voteWatch := s.Votes.WatchAll(ctx, roomID)
	defer voteWatch.Unsubscribe()

	var streamErr error
	for streamErr == nil {
		select {
		case rm, ok := <-roomWatch.C:
			if !ok {
				streamErr = errWatchClosed
				break
			}
			if rm == nil {
				c.Close(RoomGoneError, "room deleted")
				middleware.LogStreamClose(s.Logger, r.RemoteAddr, roomID, nil)
				return
			}
			streamErr = wsjson.Write(ctx, c, streamMessage{Type: "room", Room: rm})
		case opts, ok := <-optionWatch.C:
			if !ok {
				streamErr = errWatchClosed
				break
			}
			streamErr = wsjson.Write(ctx, c, streamMessage{Type: "options", Options: opts})
		case votes, ok := <-voteWatch.C:
			if !ok {
				streamErr = errWatchClosed
				break
			}
			streamErr = wsjson.Write(ctx, c, streamMessage{Type: "votes", Votes: votes})
		case <-ctx.Done():
			streamErr = ctx.Err()
		}
	}

	if errors.Is(streamErr, context.Canceled) || errors.Is(streamErr, errWatchClosed) {
		streamErr = nil
	}
	middleware.LogStreamClose(s.Logger, r.RemoteAddr, roomID, streamErr)
	c.Close(websocket.StatusNormalClosure, "stream ended")
}

// CommentStream streams one option's comment thread over a WebSocket.
func (s *Server) CommentStream(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomID")
	optionID := r.PathValue("optionID")

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{"room"},
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.Logger.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		for {
			if _, _, err := c.Read(ctx); err != nil {
				cancel()
				return
			}
		}
	}()

	watch := s.Comments.Watch(ctx, roomID, optionID)
	defer watch.Unsubscribe()

	var streamErr error
	for streamErr == nil {
		select {
		case comments, ok := <-watch.C:
			if !ok {
				streamErr = errWatchClosed
				break
			}
			streamErr = wsjson.Write(ctx, c, streamMessage{Type: "comments", Comments: comments})
		case <-ctx.Done():
			streamErr = ctx.Err()
		}
	}

	c.Close(websocket.StatusNormalClosure, "stream ended")
}
