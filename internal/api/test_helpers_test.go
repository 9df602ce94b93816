package api

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/fathomchat/chat-plane/internal/config"
	"github.com/fathomchat/chat-plane/internal/events"
	"github.com/fathomchat/chat-plane/internal/exa"
	"github.com/fathomchat/chat-plane/internal/store/memory"
	"github.com/fathomchat/chat-plane/internal/workflows"
)

type stubWorkflows struct {
	websetInputs   []workflows.WebsetInput
	researchInputs []workflows.ResearchInput
	startWebsetErr error
	researchErr    error
	cancelled      []string
}

func (s *stubWorkflows) StartWebset(ctx context.Context, input workflows.WebsetInput) error {
	if s.startWebsetErr != nil {
		return s.startWebsetErr
	}
	s.websetInputs = append(s.websetInputs, input)
	return nil
}

func (s *stubWorkflows) CancelWebset(ctx context.Context, documentID string) error {
	s.cancelled = append(s.cancelled, documentID)
	return nil
}

func (s *stubWorkflows) StartResearch(ctx context.Context, input workflows.ResearchInput) error {
	if s.researchErr != nil {
		return s.researchErr
	}
	s.researchInputs = append(s.researchInputs, input)
	return nil
}

type stubItems struct {
	items   []exa.Item
	item    exa.Item
	listErr error
	getErr  error
}

func (s *stubItems) ListAllItems(ctx context.Context, websetID string) ([]exa.Item, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.items, nil
}

func (s *stubItems) GetItem(ctx context.Context, websetID, itemID string) (exa.Item, error) {
	if s.getErr != nil {
		return exa.Item{}, s.getErr
	}
	return s.item, nil
}

type testEnv struct {
	server    *httptest.Server
	store     *memory.MemoryStore
	broker    *events.Broker
	workflows *stubWorkflows
	items     *stubItems
}

func newTestEnv(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()
	st := memory.New()
	broker := events.NewBroker()
	wf := &stubWorkflows{}
	items := &stubItems{}
	server := httptest.NewServer(NewServer(st, broker, wf, items, cfg).Router())
	t.Cleanup(server.Close)
	return &testEnv{
		server:    server,
		store:     st,
		broker:    broker,
		workflows: wf,
		items:     items,
	}
}
