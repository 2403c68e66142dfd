// Package api exposes the experiment over HTTP: turn submission, history
// loading for session resume, and server-side group assignment.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/wardrobelab/chatpants"
)

// Server wraps the HTTP handlers for the experiment API.
type Server struct {
	controller *chatpants.Controller
	store      chatpants.Store
	logger     *slog.Logger
}

// New creates a new Server instance.
func New(controller *chatpants.Controller, store chatpants.Store) *Server {
	return &Server{
		controller: controller,
		store:      store,
		logger:     slog.Default(),
	}
}

// Register wires the API routes onto the supplied mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/load-history", s.handleLoadHistory)
	mux.HandleFunc("/api/assign-group", s.handleAssignGroup)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload struct {
		Nickname string `json:"nickname"`
		Message  string `json:"message"`
		GroupID  string `json:"group_id"`
		Phase    int    `json:"phase"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if payload.Nickname == "" || payload.Message == "" || payload.GroupID == "" || payload.Phase == 0 {
		writeErrorString(w, http.StatusBadRequest, "nickname, message, group_id and phase are required")
		return
	}

	group, err := chatpants.ParseGroup(payload.GroupID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	phase, err := chatpants.ParsePhase(payload.Phase)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx := withSessionID(r.Context(), payload.Nickname)
	result, err := s.controller.HandleTurn(ctx, chatpants.TurnRequest{
		ParticipantID: payload.Nickname,
		Message:       payload.Message,
		Group:         group,
		Phase:         phase,
	})
	if err != nil {
		if errors.Is(err, chatpants.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		s.logger.Error("Turn handling failed", "participant", payload.Nickname, "error", err)
		writeErrorString(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reply":       result.Reply,
		"chatHistory": result.Transcript,
	})
}

func (s *Server) handleLoadHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	nickname := strings.TrimSpace(r.URL.Query().Get("nickname"))
	groupID := strings.TrimSpace(r.URL.Query().Get("group_id"))
	if nickname == "" || groupID == "" {
		writeErrorString(w, http.StatusBadRequest, "nickname and group_id are required")
		return
	}

	group, err := chatpants.ParseGroup(groupID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rec, err := s.store.LoadConversation(r.Context(), nickname, group)
	if err != nil && !errors.Is(err, chatpants.ErrNotFound) {
		// A read failure renders as an empty history; the client can resume.
		s.logger.Error("Failed to load history", "participant", nickname, "group", group, "error", err)
	}
	transcript := rec.Transcript
	if transcript == nil {
		transcript = []chatpants.Turn{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"chatHistory":    transcript,
		"memoryResolved": rec.MemoryResolved,
	})
}

func (s *Server) handleAssignGroup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	nickname := strings.TrimSpace(r.URL.Query().Get("nickname"))
	if nickname == "" {
		writeErrorString(w, http.StatusBadRequest, "nickname is required")
		return
	}

	group, err := s.controller.AssignGroup(r.Context(), nickname)
	if err != nil {
		if errors.Is(err, chatpants.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		s.logger.Error("Group assignment failed", "participant", nickname, "error", err)
		writeErrorString(w, http.StatusInternalServerError, "failed to assign group")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"groupId": string(group)})
}

// withSessionID mints a per-request session id and attaches it, along with the
// participant id, for log correlation and outbound LLM call metadata.
func withSessionID(ctx context.Context, participantID string) context.Context {
	sessionID, err := gonanoid.New()
	if err != nil {
		return ctx
	}
	ctx = context.WithValue(ctx, chatpants.ContextKey("sessionID"), sessionID)
	return context.WithValue(ctx, chatpants.ContextKey("participantID"), participantID)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeErrorString(w, status, err.Error())
}

func writeErrorString(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	w.WriteHeader(http.StatusMethodNotAllowed)
}

func decodeJSON(body io.ReadCloser, dest any) error {
	defer body.Close()
	return json.NewDecoder(body).Decode(dest)
}
