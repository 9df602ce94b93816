package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fathomchat/chat-plane/internal/store"
)

type MemoryStore struct {
	mu        sync.RWMutex
	chats     map[string]store.Chat
	messages  map[string][]store.Message
	documents map[string]store.Document
	events    map[string][]store.StreamEvent
	seq       map[string]int64
	todos     map[string]store.TodoPlan
}

func New() *MemoryStore {
	return &MemoryStore{
		chats:     map[string]store.Chat{},
		messages:  map[string][]store.Message{},
		documents: map[string]store.Document{},
		events:    map[string][]store.StreamEvent{},
		seq:       map[string]int64{},
		todos:     map[string]store.TodoPlan{},
	}
}

func (m *MemoryStore) CreateChat(ctx context.Context, chat store.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[chat.ID] = chat
	return nil
}

func (m *MemoryStore) GetChat(ctx context.Context, chatID string) (*store.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chat, ok := m.chats[chatID]
	if !ok {
		return nil, nil
	}
	cloned := chat
	return &cloned, nil
}

func (m *MemoryStore) ListChats(ctx context.Context, userID string) ([]store.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := make([]store.Chat, 0, len(m.chats))
	for _, chat := range m.chats {
		if userID != "" && chat.UserID != userID {
			continue
		}
		results = append(results, chat)
	}
	sort.Slice(results, func(i, j int) bool {
		return parseTime(results[i].UpdatedAt).After(parseTime(results[j].UpdatedAt))
	})
	return results, nil
}

func (m *MemoryStore) DeleteChat(ctx context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chats, chatID)
	delete(m.messages, chatID)
	delete(m.events, chatID)
	delete(m.seq, chatID)
	delete(m.todos, chatID)
	return nil
}

func (m *MemoryStore) AddMessage(ctx context.Context, msg store.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.ChatID] = append(m.messages[msg.ChatID], msg)
	return nil
}

func (m *MemoryStore) ListMessages(ctx context.Context, chatID string) ([]store.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := append([]store.Message{}, m.messages[chatID]...)
	sort.Slice(results, func(i, j int) bool {
		return results[i].Sequence < results[j].Sequence
	})
	return results, nil
}

func (m *MemoryStore) SaveDocument(ctx context.Context, doc store.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.documents[doc.ID]; ok && doc.CreatedAt == "" {
		doc.CreatedAt = existing.CreatedAt
	}
	m.documents[doc.ID] = doc
	return nil
}

func (m *MemoryStore) GetDocument(ctx context.Context, documentID string) (*store.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[documentID]
	if !ok {
		return nil, nil
	}
	cloned := doc
	return &cloned, nil
}

func (m *MemoryStore) ListDocuments(ctx context.Context, userID string) ([]store.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := make([]store.Document, 0, len(m.documents))
	for _, doc := range m.documents {
		if userID != "" && doc.UserID != userID {
			continue
		}
		results = append(results, doc)
	}
	sort.Slice(results, func(i, j int) bool {
		return parseTime(results[i].UpdatedAt).After(parseTime(results[j].UpdatedAt))
	})
	return results, nil
}

func (m *MemoryStore) AppendEvent(ctx context.Context, event store.StreamEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[event.ChatID] = append(m.events[event.ChatID], event)
	return nil
}

func (m *MemoryStore) ListEvents(ctx context.Context, chatID string, afterSeq int64) ([]store.StreamEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var results []store.StreamEvent
	for _, event := range m.events[chatID] {
		if event.Seq > afterSeq {
			results = append(results, event)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Seq < results[j].Seq
	})
	return results, nil
}

func (m *MemoryStore) NextSeq(ctx context.Context, chatID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq[chatID]++
	return m.seq[chatID], nil
}

func (m *MemoryStore) GetTodoPlan(ctx context.Context, chatID string) (*store.TodoPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	plan, ok := m.todos[chatID]
	if !ok {
		return nil, nil
	}
	cloned := plan
	cloned.Items = append([]store.TodoItem{}, plan.Items...)
	return &cloned, nil
}

func (m *MemoryStore) UpsertTodoPlan(ctx context.Context, plan store.TodoPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cloned := plan
	cloned.Items = append([]store.TodoItem{}, plan.Items...)
	m.todos[plan.ChatID] = cloned
	return nil
}

func (m *MemoryStore) DeleteTodoPlan(ctx context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.todos, chatID)
	return nil
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
