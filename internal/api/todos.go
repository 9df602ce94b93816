package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fathomchat/chat-plane/internal/events"
	"github.com/fathomchat/chat-plane/internal/store"
	"github.com/fathomchat/chat-plane/internal/todos"
)

func (s *Server) getTodoPlan(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	plan, err := s.store.GetTodoPlan(r.Context(), chatID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if plan == nil {
		plan = &store.TodoPlan{ChatID: chatID, Items: []store.TodoItem{}}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(plan)
}

type replaceTodoPlanRequest struct {
	Title string          `json:"title"`
	Items []todos.NewItem `json:"items"`
}

func (s *Server) replaceTodoPlan(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	var req replaceTodoPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	plan := todos.Replace(chatID, strings.TrimSpace(req.Title), req.Items)
	if err := s.store.UpsertTodoPlan(r.Context(), plan); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.emitEvent(r.Context(), chatID, events.TypeTodoReplace, todoPayload(plan))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(plan)
}

type applyTodoOperationsRequest struct {
	Operations []todos.Operation `json:"operations"`
}

func (s *Server) applyTodoOperations(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	var req applyTodoOperationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if len(req.Operations) == 0 {
		http.Error(w, "at least one operation is required", http.StatusBadRequest)
		return
	}

	current, err := s.store.GetTodoPlan(r.Context(), chatID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if current == nil {
		current = &store.TodoPlan{ChatID: chatID, Items: []store.TodoItem{}}
	}
	updated, err := todos.Apply(*current, req.Operations)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.store.UpsertTodoPlan(r.Context(), updated); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.emitEvent(r.Context(), chatID, events.TypeTodoUpdate, todoPayload(updated))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(updated)
}

func (s *Server) clearTodoPlan(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	if err := s.store.DeleteTodoPlan(r.Context(), chatID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.emitEvent(r.Context(), chatID, events.TypeTodoClear, map[string]any{})
	w.WriteHeader(http.StatusNoContent)
}

// todoPayload embeds the whole plan so subscribers never need a follow-up
// read to render the list.
func todoPayload(plan store.TodoPlan) map[string]any {
	items := make([]any, 0, len(plan.Items))
	for _, item := range plan.Items {
		items = append(items, map[string]any{
			"id":     item.ID,
			"text":   item.Text,
			"isDone": item.IsDone,
		})
	}
	return map[string]any{
		"title": plan.Title,
		"items": items,
	}
}
