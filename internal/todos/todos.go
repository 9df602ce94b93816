// Package todos maintains per-chat to-do plans. Mutation happens through an
// explicit reducer applied one operation at a time; the store handle is
// passed in by the caller, there is no ambient plan registry.
package todos

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fathomchat/chat-plane/internal/store"
)

const (
	OpComplete   = "complete"
	OpUncomplete = "uncomplete"
	OpAdd        = "add"
	OpRemove     = "remove"
	OpRename     = "rename"
	OpReorder    = "reorder"
	OpClear      = "clear"
)

// Operation is one plan mutation. Which fields are meaningful depends on
// Type: complete/uncomplete/remove need ID, add needs Text (AfterID
// optional), rename needs ID and Text, reorder needs ID (AfterID optional),
// clear needs nothing.
type Operation struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Text    string `json:"text,omitempty"`
	AfterID string `json:"afterId,omitempty"`
}

func (op Operation) validate() error {
	switch op.Type {
	case OpComplete, OpUncomplete, OpRemove:
		if op.ID == "" {
			return fmt.Errorf("%s operation requires an id", op.Type)
		}
	case OpAdd:
		if strings.TrimSpace(op.Text) == "" {
			return fmt.Errorf("add operation requires text")
		}
	case OpRename:
		if op.ID == "" || strings.TrimSpace(op.Text) == "" {
			return fmt.Errorf("rename operation requires an id and text")
		}
	case OpReorder:
		if op.ID == "" {
			return fmt.Errorf("reorder operation requires an id")
		}
	case OpClear:
	default:
		return fmt.Errorf("unknown operation type %q", op.Type)
	}
	return nil
}

// NewItem is an inbound item for Replace: bare text or a full item.
type NewItem struct {
	ID     string `json:"id,omitempty"`
	Text   string `json:"text"`
	IsDone bool   `json:"isDone,omitempty"`
}

// Replace builds a fresh plan from the given items, assigning IDs where
// missing.
func Replace(chatID, title string, items []NewItem) store.TodoPlan {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	normalized := make([]store.TodoItem, 0, len(items))
	for _, item := range items {
		id := item.ID
		if id == "" {
			id = uuid.New().String()
		}
		normalized = append(normalized, store.TodoItem{
			ID:        id,
			Text:      item.Text,
			IsDone:    item.IsDone,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return store.TodoPlan{
		ChatID:    chatID,
		Title:     title,
		Items:     normalized,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Apply reduces the plan over the operations in order. The input plan is not
// mutated.
func Apply(plan store.TodoPlan, ops []Operation) (store.TodoPlan, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	items := append([]store.TodoItem{}, plan.Items...)

	for _, op := range ops {
		if err := op.validate(); err != nil {
			return store.TodoPlan{}, err
		}
		switch op.Type {
		case OpComplete:
			items = setDone(items, op.ID, true, now)
		case OpUncomplete:
			items = setDone(items, op.ID, false, now)
		case OpAdd:
			newItem := store.TodoItem{
				ID:        uuid.New().String(),
				Text:      op.Text,
				IsDone:    false,
				CreatedAt: now,
				UpdatedAt: now,
			}
			items = insertAfter(items, newItem, op.AfterID)
		case OpRemove:
			items = remove(items, op.ID)
		case OpRename:
			for i := range items {
				if items[i].ID == op.ID {
					items[i].Text = op.Text
					items[i].UpdatedAt = now
				}
			}
		case OpReorder:
			moved, rest, found := extract(items, op.ID)
			if found {
				items = insertAfter(rest, moved, op.AfterID)
			}
		case OpClear:
			items = []store.TodoItem{}
		}
	}

	plan.Items = items
	plan.UpdatedAt = now
	return plan, nil
}

func setDone(items []store.TodoItem, id string, done bool, now string) []store.TodoItem {
	for i := range items {
		if items[i].ID == id {
			items[i].IsDone = done
			items[i].UpdatedAt = now
		}
	}
	return items
}

func remove(items []store.TodoItem, id string) []store.TodoItem {
	result := items[:0]
	for _, item := range items {
		if item.ID != id {
			result = append(result, item)
		}
	}
	return result
}

func extract(items []store.TodoItem, id string) (store.TodoItem, []store.TodoItem, bool) {
	for i, item := range items {
		if item.ID == id {
			rest := append([]store.TodoItem{}, items[:i]...)
			rest = append(rest, items[i+1:]...)
			return item, rest, true
		}
	}
	return store.TodoItem{}, items, false
}

// insertAfter places item after afterID, or at the end when afterID is empty
// or not found.
func insertAfter(items []store.TodoItem, item store.TodoItem, afterID string) []store.TodoItem {
	if afterID == "" {
		return append(items, item)
	}
	for i := range items {
		if items[i].ID == afterID {
			result := append([]store.TodoItem{}, items[:i+1]...)
			result = append(result, item)
			return append(result, items[i+1:]...)
		}
	}
	return append(items, item)
}
