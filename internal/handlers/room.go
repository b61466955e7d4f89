// internal/handlers/room.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gatherat/gatherat/internal/comment"
	"github.com/gatherat/gatherat/internal/models"
	"github.com/gatherat/gatherat/internal/room"
)

// CreateRoom opens a new room seeded with its initial options. The
// creator is taken from the identity cookie.
func (s *Server) CreateRoom(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		http.Error(w, "claim a display name first", http.StatusUnauthorized)
		return
	}

	var req struct {
		Question   string            `json:"question"`
		Timezone   string            `json:"timezone"`
		Options    []string          `json:"options"`
		OptionType models.OptionType `json:"optionType"`
		PollType   models.PollType   `json:"pollType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request payload", http.StatusBadRequest)
		return
	}

	roomID, err := s.Rooms.Create(r.Context(), room.CreateInput{
		Question:   req.Question,
		Timezone:   req.Timezone,
		Options:    req.Options,
		OptionType: req.OptionType,
		PollType:   req.PollType,
		CreatedBy:  id.UserID,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.Logger.Infof("room %s created by %s", roomID, id.UserID)
	writeJSON(w, http.StatusCreated, map[string]string{"roomId": roomID})
}

// GetRoom returns a one-shot snapshot of the room document.
func (s *Server) GetRoom(w http.ResponseWriter, r *http.Request) {
	rm, err := s.Rooms.Get(r.Context(), r.PathValue("roomID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rm)
}

// JoinRoom adds the caller's display name to the participant roster.
func (s *Server) JoinRoom(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		http.Error(w, "claim a display name first", http.StatusUnauthorized)
		return
	}
	if err := s.Rooms.Join(r.Context(), r.PathValue("roomID"), id.DisplayName); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LeaveRoom removes the caller from the roster and clears their vote.
func (s *Server) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		http.Error(w, "claim a display name first", http.StatusUnauthorized)
		return
	}
	roomID := r.PathValue("roomID")
	if err := s.Rooms.Leave(r.Context(), roomID, id.DisplayName); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.Votes.Remove(r.Context(), roomID, id.UserID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateStatus changes the room lifecycle status. Creator only.
func (s *Server) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		http.Error(w, "claim a display name first", http.StatusUnauthorized)
		return
	}
	roomID := r.PathValue("roomID")

	rm, err := s.Rooms.Get(r.Context(), roomID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if rm.CreatedBy != id.UserID {
		http.Error(w, "only the room creator can change its status", http.StatusForbidden)
		return
	}

	var req struct {
		Status models.RoomStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request payload", http.StatusBadRequest)
		return
	}
	if err := s.Rooms.UpdateStatus(r.Context(), roomID, req.Status); err != nil {
		s.writeError(w, err)
		return
	}
	s.Logger.Infof("room %s status set to %s by %s", roomID, req.Status, id.UserID)
	w.WriteHeader(http.StatusNoContent)
}

// DeleteRoom cascades over options, votes and comments. Creator only.
func (s *Server) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		http.Error(w, "claim a display name first", http.StatusUnauthorized)
		return
	}
	roomID := r.PathValue("roomID")

	rm, err := s.Rooms.Get(r.Context(), roomID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if rm.CreatedBy != id.UserID {
		http.Error(w, "only the room creator can delete it", http.StatusForbidden)
		return
	}

	if err := s.Rooms.Delete(r.Context(), roomID); err != nil {
		s.writeError(w, err)
		return
	}
	s.Logger.Infof("room %s deleted by %s", roomID, id.UserID)
	w.WriteHeader(http.StatusNoContent)
}

// CastVote toggles an option for the caller under the room's poll mode.
func (s *Server) CastVote(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		http.Error(w, "claim a display name first", http.StatusUnauthorized)
		return
	}
	roomID := r.PathValue("roomID")

	var req struct {
		OptionID string `json:"optionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OptionID == "" {
		http.Error(w, "optionId is required", http.StatusBadRequest)
		return
	}

	rm, err := s.Rooms.Get(r.Context(), roomID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	err = s.Votes.Cast(r.Context(), roomID, req.OptionID, id.UserID, id.DisplayName, rm.EffectivePollType())
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddOption appends a new option to the room.
func (s *Server) AddOption(w http.ResponseWriter, r *http.Request) {
	if _, err := identity(r); err != nil {
		http.Error(w, "claim a display name first", http.StatusUnauthorized)
		return
	}
	var req struct {
		Label string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request payload", http.StatusBadRequest)
		return
	}
	if len(req.Label) < 2 || len(req.Label) > 100 {
		http.Error(w, "label must be 2-100 characters", http.StatusBadRequest)
		return
	}
	if err := s.Options.Add(r.Context(), r.PathValue("roomID"), req.Label); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// AddComment appends to an option's discussion thread.
func (s *Server) AddComment(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		http.Error(w, "claim a display name first", http.StatusUnauthorized)
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request payload", http.StatusBadRequest)
		return
	}

	commentID, err := s.Comments.Add(r.Context(), r.PathValue("roomID"), comment.CreateInput{
		OptionID: r.PathValue("optionID"),
		UserID:   id.UserID,
		UserName: id.DisplayName,
		Text:     req.Text,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"commentId": commentID})
}

// DeleteComment removes a comment outright.
func (s *Server) DeleteComment(w http.ResponseWriter, r *http.Request) {
	if _, err := identity(r); err != nil {
		http.Error(w, "claim a display name first", http.StatusUnauthorized)
		return
	}
	err := s.Comments.Delete(r.Context(), r.PathValue("roomID"), r.PathValue("optionID"), r.PathValue("commentID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
