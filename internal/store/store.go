package store

import "context"

type Chat struct {
	ID        string
	UserID    string
	Title     string
	CreatedAt string
	UpdatedAt string
}

type Message struct {
	ID        string
	ChatID    string
	Role      string
	Content   string
	Sequence  int64
	CreatedAt string
	Metadata  map[string]any
}

// Document is a persisted artifact. Kind is "sheet" for webset spreadsheets
// and "text" for plain documents. SaveDocument upserts by ID: the webset
// pipeline calls it exactly once, at the end, with the final CSV text.
type Document struct {
	ID        string
	Title     string
	Kind      string
	Content   string
	UserID    string
	Metadata  map[string]any
	CreatedAt string
	UpdatedAt string
}

const DocumentKindSheet = "sheet"

type StreamEvent struct {
	ChatID    string
	Seq       int64
	Type      string
	Timestamp string
	Source    string
	Payload   map[string]any
}

type TodoItem struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsDone    bool   `json:"isDone"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

type TodoPlan struct {
	ChatID    string     `json:"chatId"`
	Title     string     `json:"title,omitempty"`
	Items     []TodoItem `json:"items"`
	CreatedAt string     `json:"createdAt,omitempty"`
	UpdatedAt string     `json:"updatedAt,omitempty"`
}

type Store interface {
	CreateChat(ctx context.Context, chat Chat) error
	GetChat(ctx context.Context, chatID string) (*Chat, error)
	ListChats(ctx context.Context, userID string) ([]Chat, error)
	DeleteChat(ctx context.Context, chatID string) error
	AddMessage(ctx context.Context, msg Message) error
	ListMessages(ctx context.Context, chatID string) ([]Message, error)
	SaveDocument(ctx context.Context, doc Document) error
	GetDocument(ctx context.Context, documentID string) (*Document, error)
	ListDocuments(ctx context.Context, userID string) ([]Document, error)
	AppendEvent(ctx context.Context, event StreamEvent) error
	ListEvents(ctx context.Context, chatID string, afterSeq int64) ([]StreamEvent, error)
	NextSeq(ctx context.Context, chatID string) (int64, error)
	GetTodoPlan(ctx context.Context, chatID string) (*TodoPlan, error)
	UpsertTodoPlan(ctx context.Context, plan TodoPlan) error
	DeleteTodoPlan(ctx context.Context, chatID string) error
}
