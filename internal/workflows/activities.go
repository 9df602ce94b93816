package workflows

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"

	"github.com/fathomchat/chat-plane/internal/events"
	"github.com/fathomchat/chat-plane/internal/exa"
	"github.com/fathomchat/chat-plane/internal/store"
	"github.com/fathomchat/chat-plane/internal/websets"
)

const (
	defaultPollInterval     = 2 * time.Second
	defaultMaxPollAttempts  = 150
	defaultResearchInterval = 5 * time.Second
	defaultMaxResearchPolls = 60
)

var newID = func() string {
	return uuid.New().String()
}

type AnnounceInput struct {
	ChatID     string
	DocumentID string
	Request    websets.SearchRequest
}

type CreateInput struct {
	ChatID     string
	DocumentID string
	Request    websets.SearchRequest
}

type CreateOutput struct {
	WebsetID string `json:"webset_id"`
}

type PopulateInput struct {
	ChatID     string
	DocumentID string
	WebsetID   string
	Request    websets.SearchRequest
}

type PopulateOutput struct {
	Content  string `json:"content"`
	Rows     int    `json:"rows"`
	TimedOut bool   `json:"timed_out"`
}

type FinalizeInput struct {
	ChatID     string
	DocumentID string
	UserID     string
	WebsetID   string
	Title      string
	Content    string
	Rows       int
	TimedOut   bool
	Failed     bool
}

type ResearchStartInput struct {
	ChatID       string
	Instructions string
	OutputSchema map[string]any
}

type ResearchStartOutput struct {
	ResearchID string `json:"research_id"`
}

type ResearchPollInput struct {
	ChatID     string
	ResearchID string
}

type ResearchPollOutput struct {
	Status    string         `json:"status"`
	Data      string         `json:"data,omitempty"`
	Citations []exa.Citation `json:"citations,omitempty"`
	TimedOut  bool           `json:"timed_out"`
}

type WebsetActivities struct {
	store               store.Store
	broker              *events.Broker
	exa                 *exa.Client
	chatPlane           string
	httpClient          *http.Client
	requestTimeout      time.Duration
	pollInterval        time.Duration
	maxPollAttempts     int
	researchInterval    time.Duration
	maxResearchAttempts int
}

type WebsetActivitiesOption func(*WebsetActivities)

func WithPollPolicy(interval time.Duration, maxAttempts int) WebsetActivitiesOption {
	return func(a *WebsetActivities) {
		if interval > 0 {
			a.pollInterval = interval
		}
		if maxAttempts > 0 {
			a.maxPollAttempts = maxAttempts
		}
	}
}

func WithResearchPolicy(interval time.Duration, maxAttempts int) WebsetActivitiesOption {
	return func(a *WebsetActivities) {
		if interval > 0 {
			a.researchInterval = interval
		}
		if maxAttempts > 0 {
			a.maxResearchAttempts = maxAttempts
		}
	}
}

func NewWebsetActivities(st store.Store, broker *events.Broker, client *exa.Client, chatPlaneURL string, opts ...WebsetActivitiesOption) *WebsetActivities {
	activities := &WebsetActivities{
		store:               st,
		broker:              broker,
		exa:                 client,
		chatPlane:           strings.TrimRight(chatPlaneURL, "/"),
		httpClient:          &http.Client{Timeout: 30 * time.Second},
		requestTimeout:      10 * time.Second,
		pollInterval:        defaultPollInterval,
		maxPollAttempts:     defaultMaxPollAttempts,
		researchInterval:    defaultResearchInterval,
		maxResearchAttempts: defaultMaxResearchPolls,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(activities)
		}
	}
	return activities
}

// AnnounceSheet streams the artifact envelope and a header-only snapshot so
// the grid renders before the first remote call completes.
func (a *WebsetActivities) AnnounceSheet(ctx context.Context, input AnnounceInput) error {
	if strings.TrimSpace(input.ChatID) == "" {
		return errors.New("chat_id required")
	}
	if strings.TrimSpace(input.DocumentID) == "" {
		return errors.New("document_id required")
	}
	if err := a.emitEvent(ctx, input.ChatID, events.TypeKind, map[string]any{
		"kind": store.DocumentKindSheet,
	}); err != nil {
		return err
	}
	if err := a.emitEvent(ctx, input.ChatID, events.TypeID, map[string]any{
		"documentId": input.DocumentID,
	}); err != nil {
		return err
	}
	if err := a.emitEvent(ctx, input.ChatID, events.TypeTitle, map[string]any{
		"title": input.Request.Title(),
	}); err != nil {
		return err
	}
	if err := a.emitEvent(ctx, input.ChatID, events.TypeClear, map[string]any{}); err != nil {
		return err
	}
	sheet := websets.NewSheet(input.Request)
	a.publishTransient(ctx, input.ChatID, events.TypeSheetDelta, map[string]any{
		"content": sheet.Snapshot(),
		"rows":    0,
	})
	return nil
}

// CreateWebset submits the search to the remote service and announces the
// returned webset id. Creation failure is fatal for the run.
func (a *WebsetActivities) CreateWebset(ctx context.Context, input CreateInput) (CreateOutput, error) {
	if err := input.Request.Validate(); err != nil {
		return CreateOutput{}, err
	}
	criteria := make([]exa.CriterionRequest, 0, len(input.Request.Criteria))
	for _, criterion := range input.Request.Criteria {
		criteria = append(criteria, exa.CriterionRequest{Description: criterion})
	}
	webset, err := a.exa.CreateWebset(ctx, exa.CreateWebsetParams{
		ExternalID: input.DocumentID,
		Search: exa.WebsetSearch{
			Query:    input.Request.Query,
			Entity:   exa.Entity{Type: input.Request.Mode},
			Criteria: criteria,
			Count:    input.Request.Count,
		},
		Metadata:    map[string]string{"chatId": input.ChatID},
		Enrichments: []any{},
	})
	if err != nil {
		return CreateOutput{}, fmt.Errorf("create webset: %w", err)
	}
	if err := a.emitEvent(ctx, input.ChatID, events.TypeWebsetMetadata, map[string]any{
		"websetId": webset.ID,
		"status":   webset.Status,
	}); err != nil {
		return CreateOutput{}, err
	}
	return CreateOutput{WebsetID: webset.ID}, nil
}

// PopulateWebset is the sequential poll loop. Each tick fetches the webset
// status and the full item listing, ingests anything unseen, and publishes a
// full-snapshot delta when the sheet grew. A failed status or items fetch
// skips the tick; only status "idle" terminates the loop. When the attempt
// cap runs out the partial snapshot is returned with TimedOut set.
func (a *WebsetActivities) PopulateWebset(ctx context.Context, input PopulateInput) (PopulateOutput, error) {
	if strings.TrimSpace(input.WebsetID) == "" {
		return PopulateOutput{}, errors.New("webset_id required")
	}
	sheet := websets.NewSheet(input.Request)
	for attempt := 0; attempt < a.maxPollAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return PopulateOutput{}, err
		}
		if activity.IsActivity(ctx) {
			activity.RecordHeartbeat(ctx, attempt)
		}

		idle := false
		webset, err := a.exa.GetWebset(ctx, input.WebsetID)
		if err != nil {
			log.Printf("webset %s: status poll failed: %v", input.WebsetID, err)
		} else {
			idle = webset.Status == exa.StatusIdle
		}

		items, err := a.exa.ListAllItems(ctx, input.WebsetID)
		if err != nil {
			log.Printf("webset %s: items poll failed: %v", input.WebsetID, err)
		} else if updated, snapshot := sheet.Ingest(items); updated {
			a.publishTransient(ctx, input.ChatID, events.TypeSheetDelta, map[string]any{
				"content": snapshot,
				"rows":    sheet.Rows(),
			})
		}

		if idle {
			return PopulateOutput{Content: sheet.Snapshot(), Rows: sheet.Rows()}, nil
		}
		select {
		case <-ctx.Done():
			return PopulateOutput{}, ctx.Err()
		case <-time.After(a.pollInterval):
		}
	}
	return PopulateOutput{Content: sheet.Snapshot(), Rows: sheet.Rows(), TimedOut: true}, nil
}

// FinalizeWebset persists the accumulated sheet exactly once and emits the
// finish event. It runs for completed, timed out, and failed runs alike so
// the UI always leaves the loading state.
func (a *WebsetActivities) FinalizeWebset(ctx context.Context, input FinalizeInput) error {
	if strings.TrimSpace(input.DocumentID) == "" {
		return errors.New("document_id required")
	}
	metadata := map[string]any{
		"rows":     input.Rows,
		"timedOut": input.TimedOut,
		"failed":   input.Failed,
	}
	if input.WebsetID != "" {
		metadata["websetId"] = input.WebsetID
	}
	if err := a.store.SaveDocument(ctx, store.Document{
		ID:       input.DocumentID,
		Title:    input.Title,
		Kind:     store.DocumentKindSheet,
		Content:  input.Content,
		UserID:   input.UserID,
		Metadata: metadata,
	}); err != nil {
		return fmt.Errorf("save document %s: %w", input.DocumentID, err)
	}
	return a.emitEvent(ctx, input.ChatID, events.TypeFinish, map[string]any{
		"documentId": input.DocumentID,
		"rows":       input.Rows,
		"timedOut":   input.TimedOut,
		"failed":     input.Failed,
	})
}

// StartResearch submits a research task to the remote service.
func (a *WebsetActivities) StartResearch(ctx context.Context, input ResearchStartInput) (ResearchStartOutput, error) {
	if strings.TrimSpace(input.Instructions) == "" {
		return ResearchStartOutput{}, errors.New("instructions required")
	}
	task, err := a.exa.CreateResearch(ctx, input.Instructions, input.OutputSchema)
	if err != nil {
		return ResearchStartOutput{}, fmt.Errorf("create research task: %w", err)
	}
	return ResearchStartOutput{ResearchID: task.ResearchID}, nil
}

// PollResearch waits for a research task to settle. A completed task has its
// payload appended to the chat as an assistant message; a failed task is a
// hard error; running past the attempt cap reports TimedOut.
func (a *WebsetActivities) PollResearch(ctx context.Context, input ResearchPollInput) (ResearchPollOutput, error) {
	if strings.TrimSpace(input.ResearchID) == "" {
		return ResearchPollOutput{}, errors.New("research_id required")
	}
	for attempt := 0; attempt < a.maxResearchAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return ResearchPollOutput{}, err
		}
		if activity.IsActivity(ctx) {
			activity.RecordHeartbeat(ctx, attempt)
		}
		task, err := a.exa.GetResearch(ctx, input.ResearchID)
		if err != nil {
			log.Printf("research %s: poll failed: %v", input.ResearchID, err)
		} else {
			switch task.Status {
			case exa.ResearchCompleted:
				output := ResearchPollOutput{
					Status:    task.Status,
					Data:      string(task.Data),
					Citations: task.Citations,
				}
				if err := a.recordResearchMessage(ctx, input.ChatID, output); err != nil {
					return ResearchPollOutput{}, err
				}
				return output, nil
			case exa.ResearchFailed:
				detail := strings.TrimSpace(task.Message)
				if detail == "" {
					detail = "research task failed"
				}
				return ResearchPollOutput{Status: task.Status}, errors.New(detail)
			}
		}
		select {
		case <-ctx.Done():
			return ResearchPollOutput{}, ctx.Err()
		case <-time.After(a.researchInterval):
		}
	}
	return ResearchPollOutput{TimedOut: true}, nil
}

func (a *WebsetActivities) recordResearchMessage(ctx context.Context, chatID string, output ResearchPollOutput) error {
	if strings.TrimSpace(chatID) == "" {
		return nil
	}
	content := formatResearchMessage(output)
	msg := store.Message{
		ID:        newID(),
		ChatID:    chatID,
		Role:      "assistant",
		Content:   content,
		Sequence:  time.Now().UnixNano(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := a.store.AddMessage(ctx, msg); err != nil {
		return err
	}
	return a.emitEvent(ctx, chatID, events.TypeMessageAdded, map[string]any{
		"messageId": msg.ID,
		"role":      msg.Role,
		"content":   msg.Content,
	})
}

func formatResearchMessage(output ResearchPollOutput) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(output.Data))
	if len(output.Citations) > 0 {
		b.WriteString("\n\nSources:")
		for _, citation := range output.Citations {
			title := strings.TrimSpace(citation.Title)
			if title == "" {
				title = citation.URL
			}
			fmt.Fprintf(&b, "\n- [%s](%s)", title, citation.URL)
		}
	}
	return b.String()
}

// emitEvent hands persisted events to the chat plane so subscribers on its
// stream see them live; when the plane is unreachable the event is appended
// to the store directly and surfaces on the next replay.
func (a *WebsetActivities) emitEvent(ctx context.Context, chatID string, eventType string, payload map[string]any) error {
	if err := a.postEvent(ctx, chatID, eventType, payload); err == nil {
		return nil
	}
	return a.appendLocalEvent(ctx, chatID, eventType, payload)
}

func (a *WebsetActivities) appendLocalEvent(ctx context.Context, chatID string, eventType string, payload map[string]any) error {
	seq, err := a.store.NextSeq(ctx, chatID)
	if err != nil {
		return err
	}
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	if err := a.store.AppendEvent(ctx, store.StreamEvent{
		ChatID:    chatID,
		Seq:       seq,
		Type:      eventType,
		Timestamp: ts,
		Source:    "webset",
		Payload:   payload,
	}); err != nil {
		return err
	}
	a.broker.Publish(events.StreamEvent{
		ChatID:  chatID,
		Seq:     seq,
		Type:    eventType,
		Ts:      ts,
		Source:  "webset",
		Payload: payload,
	})
	return nil
}

// publishTransient fans an event out to live subscribers without persisting
// it. Sheet deltas are full snapshots, so a dropped delta is recovered by the
// next one and the replay path only needs the persisted finish event.
func (a *WebsetActivities) publishTransient(ctx context.Context, chatID string, eventType string, payload map[string]any) {
	flagged := make(map[string]any, len(payload)+1)
	for key, value := range payload {
		flagged[key] = value
	}
	flagged["transient"] = true
	if err := a.postEvent(ctx, chatID, eventType, flagged); err == nil {
		return
	}
	a.broker.Publish(events.StreamEvent{
		ChatID:    chatID,
		Type:      eventType,
		Ts:        time.Now().UTC().Format(time.RFC3339Nano),
		Source:    "webset",
		Transient: true,
		Payload:   payload,
	})
}

func (a *WebsetActivities) postEvent(ctx context.Context, chatID string, eventType string, payload map[string]any) error {
	if a.chatPlane == "" {
		return errors.New("chat plane url not configured")
	}
	endpoint := fmt.Sprintf("%s/chats/%s/events", a.chatPlane, url.PathEscape(chatID))
	body, err := json.Marshal(map[string]any{
		"type":      eventType,
		"source":    "webset",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"payload":   payload,
	})
	if err != nil {
		return err
	}
	requestCtx, cancel := context.WithTimeout(ctx, a.requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("chat plane event failed: %s", resp.Status)
	}
	return nil
}
