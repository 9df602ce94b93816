package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/fathomchat/chat-plane/internal/websets"
	"github.com/fathomchat/chat-plane/internal/workflows"
)

// websetRequestSchema rejects malformed payloads before the semantic
// Validate pass so clients get a shape error, not a field error.
var websetRequestSchema = jsonschema.MustCompileString("webset_request.json", `{
	"type": "object",
	"required": ["query", "mode", "criteria", "count"],
	"properties": {
		"query": {"type": "string"},
		"mode": {"type": "string", "enum": ["company", "person"]},
		"criteria": {
			"type": "array",
			"items": {"type": "string"},
			"minItems": 1
		},
		"count": {"type": "integer", "minimum": 1, "maximum": 1000},
		"user_id": {"type": "string"}
	}
}`)

var researchRequestSchema = jsonschema.MustCompileString("research_request.json", `{
	"type": "object",
	"required": ["instructions"],
	"properties": {
		"instructions": {"type": "string", "minLength": 1},
		"output_schema": {"type": "object"}
	}
}`)

type createWebsetRequest struct {
	websets.SearchRequest
	UserID string `json:"user_id"`
}

func (s *Server) createWebset(w http.ResponseWriter, r *http.Request) {
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

	var raw any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := websetRequestSchema.Validate(raw); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req createWebsetRequest
	if err := reencode(raw, &req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = chat.UserID
	}
	documentID := uuid.New().String()
	if err := s.workflows.StartWebset(r.Context(), workflows.WebsetInput{
		ChatID:     chatID,
		DocumentID: documentID,
		UserID:     userID,
		Request:    req.SearchRequest,
	}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"document_id": documentID,
		"title":       req.Title(),
	})
}

type createResearchRequest struct {
	Instructions string         `json:"instructions"`
	OutputSchema map[string]any `json:"output_schema"`
}

func (s *Server) createResearch(w http.ResponseWriter, r *http.Request) {
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

	var raw any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := researchRequestSchema.Validate(raw); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req createResearchRequest
	if err := reencode(raw, &req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	taskID := uuid.New().String()
	if err := s.workflows.StartResearch(r.Context(), workflows.ResearchInput{
		TaskID:       taskID,
		ChatID:       chatID,
		Instructions: strings.TrimSpace(req.Instructions),
		OutputSchema: req.OutputSchema,
	}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{"task_id": taskID})
}

func (s *Server) listWebsetItems(w http.ResponseWriter, r *http.Request) {
	websetID := chi.URLParam(r, "id")
	items, err := s.items.ListAllItems(r.Context(), websetID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"items": items, "count": len(items)})
}

func (s *Server) getWebsetItem(w http.ResponseWriter, r *http.Request) {
	websetID := chi.URLParam(r, "id")
	itemID := chi.URLParam(r, "itemID")
	item, err := s.items.GetItem(r.Context(), websetID, itemID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(item)
}

// reencode round-trips an already schema-validated value into a typed
// request struct.
func reencode(raw any, target any) error {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(encoded, target)
}
