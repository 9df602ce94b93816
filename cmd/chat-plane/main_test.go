package main

import (
	"context"
	"errors"
	"os"
	"testing"

	"go.temporal.io/sdk/client"

	"github.com/fathomchat/chat-plane/internal/config"
	"github.com/fathomchat/chat-plane/internal/events"
	"github.com/fathomchat/chat-plane/internal/exa"
	"github.com/fathomchat/chat-plane/internal/store/postgres"
	"github.com/fathomchat/chat-plane/internal/workflows"
)

type stubServer struct {
	err error
}

func (s stubServer) Start(ctx context.Context, addr string) error {
	return s.err
}

func captureChatPlaneDeps() func() {
	origLoadConfig := loadConfig
	origNewBroker := newBroker
	origNewStore := newStore
	origDialTemporal := dialTemporal
	origNewWorkflowService := newWorkflowService
	origNewExaClient := newExaClient
	origNewServer := newServer
	origNotifyContext := notifyContext

	return func() {
		loadConfig = origLoadConfig
		newBroker = origNewBroker
		newStore = origNewStore
		dialTemporal = origDialTemporal
		newWorkflowService = origNewWorkflowService
		newExaClient = origNewExaClient
		newServer = origNewServer
		notifyContext = origNotifyContext
	}
}

func TestRunSuccess(t *testing.T) {
	restore := captureChatPlaneDeps()
	t.Cleanup(restore)

	loadConfig = func() (config.Config, error) {
		return config.Config{
			Port:            "0",
			PostgresURL:     "postgres://example",
			TemporalAddress: "localhost:7233",
		}, nil
	}
	newStore = func(_ string) (*postgres.PostgresStore, error) {
		return &postgres.PostgresStore{}, nil
	}
	dialTemporal = func(_ client.Options) (client.Client, error) {
		return nil, nil
	}
	newWorkflowService = func(_ client.Client, _ string) *workflows.Service {
		return nil
	}
	startedWith := ""
	newServer = func(_ *postgres.PostgresStore, _ *events.Broker, _ *workflows.Service, _ *exa.Client, cfg config.Config) server {
		startedWith = cfg.Port
		return stubServer{}
	}
	notifyContext = func(ctx context.Context, _ ...os.Signal) (context.Context, context.CancelFunc) {
		return context.WithCancel(ctx)
	}

	if err := run(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if startedWith != "0" {
		t.Fatalf("server built with port %q, want %q", startedWith, "0")
	}
}

func TestRunConfigLoadFailure(t *testing.T) {
	restore := captureChatPlaneDeps()
	t.Cleanup(restore)

	loadConfig = func() (config.Config, error) {
		return config.Config{}, errors.New("config load failed")
	}

	if err := run(); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestRunStoreInitFailure(t *testing.T) {
	restore := captureChatPlaneDeps()
	t.Cleanup(restore)

	loadConfig = func() (config.Config, error) {
		return config.Config{PostgresURL: "postgres://example"}, nil
	}
	newStore = func(_ string) (*postgres.PostgresStore, error) {
		return nil, errors.New("store init failed")
	}
	notifyContext = func(ctx context.Context, _ ...os.Signal) (context.Context, context.CancelFunc) {
		return context.WithCancel(ctx)
	}

	if err := run(); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestRunTemporalClientFailure(t *testing.T) {
	restore := captureChatPlaneDeps()
	t.Cleanup(restore)

	loadConfig = func() (config.Config, error) {
		return config.Config{
			PostgresURL:     "postgres://example",
			TemporalAddress: "localhost:7233",
		}, nil
	}
	newStore = func(_ string) (*postgres.PostgresStore, error) {
		return nil, nil
	}
	dialTemporal = func(_ client.Options) (client.Client, error) {
		return nil, errors.New("temporal dial failed")
	}
	notifyContext = func(ctx context.Context, _ ...os.Signal) (context.Context, context.CancelFunc) {
		return context.WithCancel(ctx)
	}

	if err := run(); err == nil {
		t.Fatal("expected error, got nil")
	}
}
