package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/fathomchat/chat-plane/internal/config"
	"github.com/fathomchat/chat-plane/internal/events"
	"github.com/fathomchat/chat-plane/internal/exa"
	"github.com/fathomchat/chat-plane/internal/store"
	"github.com/fathomchat/chat-plane/internal/workflows"
)

type Server struct {
	store     store.Store
	broker    Broker
	workflows WorkflowService
	items     ItemSource
	cfg       config.Config
}

type Broker interface {
	Publish(event events.StreamEvent)
	Subscribe(ctx context.Context, chatID string) <-chan events.StreamEvent
}

type WorkflowService interface {
	StartWebset(ctx context.Context, input workflows.WebsetInput) error
	CancelWebset(ctx context.Context, documentID string) error
	StartResearch(ctx context.Context, input workflows.ResearchInput) error
}

// ItemSource is the slice of the remote client the item proxy endpoints
// need. *exa.Client satisfies it.
type ItemSource interface {
	ListAllItems(ctx context.Context, websetID string) ([]exa.Item, error)
	GetItem(ctx context.Context, websetID, itemID string) (exa.Item, error)
}

func NewServer(store store.Store, broker Broker, workflows WorkflowService, items ItemSource, cfg config.Config) *Server {
	return &Server{
		store:     store,
		broker:    broker,
		workflows: workflows,
		items:     items,
		cfg:       cfg,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(quietRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Post("/chats", s.createChat)
	r.Get("/chats", s.listChats)
	r.Get("/chats/{id}", s.getChat)
	r.Delete("/chats/{id}", s.deleteChat)
	r.Post("/chats/{id}/messages", s.addMessage)
	r.Post("/chats/{id}/events", s.ingestEvent)
	r.Get("/chats/{id}/events", s.streamEvents)
	r.Post("/chats/{id}/websets", s.createWebset)
	r.Post("/chats/{id}/research", s.createResearch)
	r.Get("/chats/{id}/todos", s.getTodoPlan)
	r.Post("/chats/{id}/todos", s.replaceTodoPlan)
	r.Post("/chats/{id}/todos/operations", s.applyTodoOperations)
	r.Delete("/chats/{id}/todos", s.clearTodoPlan)
	r.Get("/documents", s.listDocuments)
	r.Get("/documents/{id}", s.getDocument)
	r.Get("/documents/{id}/export", s.exportDocument)
	r.Get("/websets/{id}/items", s.listWebsetItems)
	r.Get("/websets/{id}/items/{itemID}", s.getWebsetItem)
	r.Get("/health", s.health)
	r.Get("/ready", s.ready)

	return r
}

func quietRequestLogger(next http.Handler) http.Handler {
	logged := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSuppressRequestLog(r.Method, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		logged.ServeHTTP(w, r)
	})
}

func shouldSuppressRequestLog(method string, path string) bool {
	cleanPath := strings.TrimSpace(path)
	if strings.HasSuffix(cleanPath, "/events") {
		return true
	}
	if method == http.MethodGet && (cleanPath == "/chats" || cleanPath == "/health" || cleanPath == "/ready") {
		return true
	}
	return false
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type subsystemStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status     string                     `json:"status"`
	Subsystems map[string]subsystemStatus `json:"subsystems"`
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	subsystems := map[string]subsystemStatus{}
	overall := http.StatusOK

	if _, err := s.store.ListChats(ctx, ""); err != nil {
		subsystems["store"] = subsystemStatus{Status: "error", Error: err.Error()}
		overall = http.StatusServiceUnavailable
	} else {
		subsystems["store"] = subsystemStatus{Status: "ok"}
	}
	if strings.TrimSpace(s.cfg.ExaAPIKey) == "" {
		subsystems["exa"] = subsystemStatus{Status: "error", Error: "EXA_API_KEY not configured"}
		overall = http.StatusServiceUnavailable
	} else {
		subsystems["exa"] = subsystemStatus{Status: "ok"}
	}

	status := "ok"
	if overall != http.StatusOK {
		status = "degraded"
	}
	writeJSONStatus(w, readinessResponse{Status: status, Subsystems: subsystems}, overall)
}

func writeJSONStatus(w http.ResponseWriter, value any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

type createChatRequest struct {
	UserID  string `json:"user_id"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

func (s *Server) createChat(w http.ResponseWriter, r *http.Request) {
	req := createChatRequest{}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
	}
	id := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "New chat"
	}
	chat := store.Chat{
		ID:        id,
		UserID:    strings.TrimSpace(req.UserID),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateChat(r.Context(), chat); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.emitEvent(r.Context(), id, events.TypeChatStarted, map[string]any{
		"title":   title,
		"user_id": chat.UserID,
	})

	if message := strings.TrimSpace(req.Message); message != "" {
		msg := store.Message{
			ID:        uuid.New().String(),
			ChatID:    id,
			Role:      "user",
			Content:   message,
			Sequence:  time.Now().UnixNano(),
			CreatedAt: now,
		}
		if err := s.store.AddMessage(r.Context(), msg); err == nil {
			s.emitEvent(r.Context(), id, events.TypeMessageAdded, map[string]any{
				"messageId": msg.ID,
				"role":      msg.Role,
				"content":   msg.Content,
			})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(chat)
}

func (s *Server) listChats(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	chats, err := s.store.ListChats(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"chats": chats})
}

func (s *Server) getChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	chat, err := s.store.GetChat(r.Context(), chatID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if chat == nil {
		http.Error(w, "chat not found", http.StatusNotFound)
		return
	}
	messages, err := s.store.ListMessages(r.Context(), chatID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"chat": chat, "messages": messages})
}

func (s *Server) deleteChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	if err := s.store.DeleteChat(r.Context(), chatID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addMessageRequest struct {
	Role     string         `json:"role"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

func (s *Server) addMessage(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	var req addMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		http.Error(w, "content required", http.StatusBadRequest)
		return
	}
	if req.Role == "" {
		req.Role = "user"
	}

	msg := store.Message{
		ID:        uuid.New().String(),
		ChatID:    chatID,
		Role:      req.Role,
		Content:   req.Content,
		Sequence:  time.Now().UnixNano(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Metadata:  req.Metadata,
	}
	if err := s.store.AddMessage(r.Context(), msg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.emitEvent(r.Context(), chatID, events.TypeMessageAdded, map[string]any{
		"messageId": msg.ID,
		"role":      msg.Role,
		"content":   msg.Content,
	})

	w.WriteHeader(http.StatusAccepted)
}

type ingestEventRequest struct {
	Type      string         `json:"type"`
	Source    string         `json:"source"`
	Timestamp string         `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

// ingestEvent accepts events from the task worker so they flow through the
// same sequence counter and broker as events the API produces itself.
func (s *Server) ingestEvent(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	var req ingestEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Type == "" {
		http.Error(w, "event type required", http.StatusBadRequest)
		return
	}

	timestamp := req.Timestamp
	if timestamp == "" {
		timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}

	if isTransientPayload(req.Payload) {
		s.broker.Publish(events.StreamEvent{
			ChatID:    chatID,
			Type:      events.NormalizeType(req.Type),
			Ts:        timestamp,
			Source:    req.Source,
			Transient: true,
			Payload:   req.Payload,
		})
		w.WriteHeader(http.StatusAccepted)
		return
	}

	seq, _ := s.store.NextSeq(r.Context(), chatID)
	event := store.StreamEvent{
		ChatID:    chatID,
		Seq:       seq,
		Type:      events.NormalizeType(req.Type),
		Timestamp: timestamp,
		Source:    req.Source,
		Payload:   req.Payload,
	}
	_ = s.store.AppendEvent(r.Context(), event)
	s.broker.Publish(toEvent(event))

	w.WriteHeader(http.StatusAccepted)
}

func isTransientPayload(payload map[string]any) bool {
	if payload == nil {
		return false
	}
	if value, ok := payload["transient"]; ok {
		if flag, ok := value.(bool); ok {
			return flag
		}
	}
	return false
}

func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	afterSeq := parseAfterSeq(chatID, r)
	stored, err := s.store.ListEvents(ctx, chatID, afterSeq)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	for _, event := range stored {
		sendSSE(w, toEvent(event))
		flusher.Flush()
	}

	eventsChan := s.broker.Subscribe(ctx, chatID)
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case event, ok := <-eventsChan:
			if !ok {
				return
			}
			sendSSE(w, event)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func sendSSE(w http.ResponseWriter, event events.StreamEvent) {
	payload, _ := json.Marshal(event)
	fmt.Fprintf(w, "id: %s:%d\n", event.ChatID, event.Seq)
	fmt.Fprint(w, "event: chat_event\n")
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

func toEvent(event store.StreamEvent) events.StreamEvent {
	return events.StreamEvent{
		ChatID:  event.ChatID,
		Seq:     event.Seq,
		Type:    events.NormalizeType(event.Type),
		Ts:      event.Timestamp,
		Source:  event.Source,
		Payload: event.Payload,
	}
}

func parseAfterSeq(chatID string, r *http.Request) int64 {
	afterParam := strings.TrimSpace(r.URL.Query().Get("after_seq"))
	if afterParam != "" {
		if parsed, err := strconv.ParseInt(afterParam, 10, 64); err == nil {
			return parsed
		}
	}
	lastEventID := r.Header.Get("Last-Event-ID")
	if lastEventID == "" {
		return 0
	}
	parts := strings.Split(lastEventID, ":")
	if len(parts) != 2 {
		return 0
	}
	if parts[0] != chatID {
		return 0
	}
	seq, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0
	}
	return seq
}

// emitEvent persists and fans out a stream event; failures are swallowed
// because the primary write has already succeeded by the time this runs.
func (s *Server) emitEvent(ctx context.Context, chatID string, eventType string, payload map[string]any) {
	seq, err := s.store.NextSeq(ctx, chatID)
	if err != nil {
		return
	}
	event := store.StreamEvent{
		ChatID:    chatID,
		Seq:       seq,
		Type:      eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Source:    "chat_plane",
		Payload:   payload,
	}
	_ = s.store.AppendEvent(ctx, event)
	s.broker.Publish(toEvent(event))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Last-Event-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()
	return server.ListenAndServe()
}
