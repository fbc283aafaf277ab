// Package gateway exposes Roam over HTTP: conversations, messages,
// preferences, events, and pending deferred work.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/adelaroche/roam/internal/assistant"
	"github.com/adelaroche/roam/internal/conversations"
	"github.com/adelaroche/roam/internal/events"
	"github.com/adelaroche/roam/internal/scheduler"
)

// Server is the Roam gateway HTTP server.
type Server struct {
	httpServer *http.Server
	bus        *events.Bus
	store      conversations.Store
	assistant  *assistant.Assistant
	sched      *scheduler.Scheduler
	host       string
	port       int
}

// NewServer creates a new gateway server.
func NewServer(bus *events.Bus, store conversations.Store, asst *assistant.Assistant, sched *scheduler.Scheduler, host string, port int) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	s := &Server{
		bus:       bus,
		store:     store,
		assistant: asst,
		sched:     sched,
		host:      host,
		port:      port,
	}

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/events", s.handleEvents)
	r.Get("/api/pending", s.handlePending)

	r.Get("/api/conversations", s.handleListConversations)
	r.Post("/api/conversations", s.handleCreateConversation)
	r.Get("/api/conversations/{id}", s.handleGetConversation)
	r.Delete("/api/conversations/{id}", s.handleCloseConversation)

	r.Get("/api/conversations/{id}/messages", s.handleListMessages)
	r.Post("/api/conversations/{id}/messages", s.handlePostMessage)

	r.Get("/api/conversations/{id}/preferences", s.handleGetPreferences)
	r.Put("/api/conversations/{id}/preferences", s.handlePutPreferences)

	r.Get("/api/conversations/{id}/followups", s.handleFollowUps)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: r,
	}

	return s
}

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	slog.Info("Roam gateway listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limitStr := r.URL.Query().Get("limit")
	limit := 50
	if limitStr != "" {
		fmt.Sscanf(limitStr, "%d", &limit)
	}

	history := s.bus.History(limit)

	type eventJSON struct {
		ID             string             `json:"id"`
		ConversationID string             `json:"conversation_id,omitempty"`
		Type           string             `json:"type"`
		Timestamp      string             `json:"timestamp"`
		Source         events.EventSource `json:"source"`
		Payload        map[string]any     `json:"payload"`
	}

	result := make([]eventJSON, len(history))
	for i, e := range history {
		result[i] = eventJSON{
			ID:             e.ID,
			ConversationID: e.ConversationID,
			Type:           string(e.Type),
			Timestamp:      e.Timestamp.Format(time.RFC3339Nano),
			Source:         e.Source,
			Payload:        e.Payload,
		}
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	if s.sched == nil {
		writeJSON(w, http.StatusOK, []*scheduler.Entry{})
		return
	}
	writeJSON(w, http.StatusOK, s.sched.Pending())
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.Create(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.bus.Publish(events.NewTypedEventWithConversation(events.SourceGateway, events.ConversationCreatedPayload{}, c.ID))
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCloseConversation(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Close(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.store.LoadMessages(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	if msgs == nil {
		msgs = []conversations.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.Text == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	reply, err := s.assistant.HandleMessage(r.Context(), chi.URLParam(r, "id"), body.Text)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prof, err := s.assistant.Profile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prof)
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Preferences map[string]any `json:"preferences"`
		Notes       string         `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	ack, err := s.assistant.UpsertPreferences(r.Context(), chi.URLParam(r, "id"), body.Preferences, body.Notes)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

func (s *Server) handleFollowUps(w http.ResponseWriter, r *http.Request) {
	state, err := s.store.LoadState(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	result := make([]*conversations.FollowUpRecord, 0, len(state.FollowUps))
	for _, rec := range state.FollowUps {
		result = append(result, rec)
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, conversations.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
