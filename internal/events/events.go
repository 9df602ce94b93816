package events

import (
	"context"
	"strings"
	"sync"
)

// Stream event types consumed by the chat UI. Sheet deltas carry the entire
// accumulated CSV text, not an increment.
const (
	TypeChatStarted    = "chat.started"
	TypeMessageAdded   = "message.added"
	TypeKind           = "artifact.kind"
	TypeID             = "artifact.id"
	TypeTitle          = "artifact.title"
	TypeClear          = "artifact.clear"
	TypeWebsetMetadata = "webset.metadata"
	TypeSheetDelta     = "sheet.delta"
	TypeFinish         = "artifact.finish"
	TypeTodoReplace    = "todo.replace"
	TypeTodoUpdate     = "todo.update"
	TypeTodoClear      = "todo.clear"
)

type StreamEvent struct {
	ChatID    string         `json:"chat_id"`
	Seq       int64          `json:"seq"`
	Type      string         `json:"type"`
	Ts        string         `json:"ts"`
	Source    string         `json:"source"`
	Transient bool           `json:"transient,omitempty"`
	Payload   map[string]any `json:"payload"`
}

type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan StreamEvent]struct{}
}

func NormalizeType(eventType string) string {
	return strings.TrimSpace(strings.ToLower(eventType))
}

func NewBroker() *Broker {
	return &Broker{
		subscribers: map[string]map[chan StreamEvent]struct{}{},
	}
}

func (b *Broker) Subscribe(ctx context.Context, chatID string) <-chan StreamEvent {
	ch := make(chan StreamEvent, 16)

	b.mu.Lock()
	if b.subscribers[chatID] == nil {
		b.subscribers[chatID] = map[chan StreamEvent]struct{}{}
	}
	b.subscribers[chatID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if b.subscribers[chatID] != nil {
			delete(b.subscribers[chatID], ch)
			if len(b.subscribers[chatID]) == 0 {
				delete(b.subscribers, chatID)
			}
		}
		b.mu.Unlock()
		close(ch)
	}()

	return ch
}

func (b *Broker) Publish(event StreamEvent) {
	b.mu.RLock()
	subscribers := b.subscribers[event.ChatID]
	chans := make([]chan StreamEvent, 0, len(subscribers))
	for ch := range subscribers {
		chans = append(chans, ch)
	}
	b.mu.RUnlock()

	for _, ch := range chans {
		select {
		case ch <- event:
		default:
		}
	}
}
