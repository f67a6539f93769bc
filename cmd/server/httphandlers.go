package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"example.com/socialfeed/internal/apperr"
	appkafka "example.com/socialfeed/internal/broker"
	"example.com/socialfeed/internal/posts"
)

// --- HTTP Handlers ---

// listUsersHandler returns every user id.
// Returns JSON response: {"users": ["alice", ...]}
func (s *Server) listUsersHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := s.users.ListAllIDs(r.Context())
	if err != nil {
		writeError(w, "http/users", "Failed to list users", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": ids})
}

// getUserHandler returns a single user or 404.
func (s *Server) getUserHandler(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, "http/users", "Failed to get user", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// loadOrCreateUserHandler returns the user, creating it with defaults first
// when it does not exist yet.
func (s *Server) loadOrCreateUserHandler(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.LoadOrCreate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, "http/users", "Failed to load or create user", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// saveUserHandler updates name and avatar.
// Expects JSON body: {"name": "Bobby", "avatarURL": "images/bob.png"}
func (s *Server) saveUserHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name      string `json:"name"`
		AvatarURL string `json:"avatarURL"`
	}
	if !decodeBody(w, r, "http/users", &body) {
		return
	}

	u, err := s.users.Save(r.Context(), r.PathValue("id"), body.Name, body.AvatarURL)
	if err != nil {
		writeError(w, "http/users", "Failed to save user", err)
		return
	}
	logg.Info("http/users", "Profile saved", "user_id", u.ID)
	writeJSON(w, http.StatusOK, u)
}

// getFeedHandler returns the reverse-chronological feed of a user.
// Returns JSON response: {"posts": [{"user": {...}, "time": ..., "text": ...}]}
func (s *Server) getFeedHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	entries, err := s.feed.BuildFeed(r.Context(), id)
	if err != nil {
		writeError(w, "http/feed", "Failed to build feed", err)
		return
	}
	logg.Info("http/feed", "Feed built", "user_id", id, "entries", len(entries))
	writeJSON(w, http.StatusOK, map[string]any{"posts": entries})
}

// createPostHandler creates a post authored by the path user.
// Expects JSON body: {"text": "post content"}
// With Kafka ingest the post is published and 202 is returned; otherwise it is
// stored directly and 200 is returned.
func (s *Server) createPostHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if !decodeBody(w, r, "http/posts", &body) {
		return
	}

	authorID := r.PathValue("id")
	if _, err := s.users.Get(r.Context(), authorID); err != nil {
		writeError(w, "http/posts", "Post author lookup failed", err)
		return
	}

	if s.kafkaWriter == nil {
		post, err := s.posts.Create(r.Context(), authorID, body.Text, time.Time{})
		if err != nil {
			writeError(w, "http/posts", "Failed to create post", err)
			return
		}
		logg.Info("http/posts", "Post created", "user_id", authorID)
		writeJSON(w, http.StatusOK, post)
		return
	}

	post, err := posts.New(authorID, body.Text, time.Now())
	if err != nil {
		writeError(w, "http/posts", "Invalid post", err)
		return
	}
	if err := appkafka.PublishPost(s.kafkaWriter, post); err != nil {
		writeError(w, "http/posts", "Failed to write Kafka message", err)
		return
	}
	logg.Info("http/posts", "Post published for ingest", "user_id", authorID)
	writeJSON(w, http.StatusAccepted, post)
}

// addFollowHandler makes the path user follow {followee}.
func (s *Server) addFollowHandler(w http.ResponseWriter, r *http.Request) {
	u, err := s.follow.AddFollow(r.Context(), r.PathValue("id"), r.PathValue("followee"))
	if err != nil {
		writeError(w, "http/follow", "Failed to add follow", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// removeFollowHandler makes the path user stop following {followee}.
func (s *Server) removeFollowHandler(w http.ResponseWriter, r *http.Request) {
	u, err := s.follow.RemoveFollow(r.Context(), r.PathValue("id"), r.PathValue("followee"))
	if err != nil {
		writeError(w, "http/follow", "Failed to remove follow", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// --- helpers ---

func decodeBody(w http.ResponseWriter, r *http.Request, module string, dst any) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		logg.Error(module, "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// statusFor maps core error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrInvalidEdge), errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, module, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logg.Error(module, msg, err)
		http.Error(w, "internal error", status)
		return
	}
	logg.Info(module, msg+": "+err.Error())
	writeJSON(w, status, map[string]any{"error": http.StatusText(status), "detail": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
