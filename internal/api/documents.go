package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fathomchat/chat-plane/internal/export"
	"github.com/fathomchat/chat-plane/internal/store"
)

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	documents, err := s.store.ListDocuments(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"documents": documents})
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "id")
	doc, err := s.store.GetDocument(r.Context(), documentID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if doc == nil {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}

func (s *Server) exportDocument(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "id")
	doc, err := s.store.GetDocument(r.Context(), documentID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if doc == nil {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}
	if doc.Kind != store.DocumentKindSheet {
		http.Error(w, "only sheet documents can be exported", http.StatusBadRequest)
		return
	}
	workbook, err := export.SheetXLSX(*doc)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	filename := sanitizeFilename(doc.Title)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+".xlsx"))
	_, _ = w.Write(workbook)
}

func sanitizeFilename(title string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		default:
			return r
		}
	}, strings.TrimSpace(title))
	if cleaned == "" {
		return "sheet"
	}
	return cleaned
}
