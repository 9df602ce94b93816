package main

import (
	"errors"
	"testing"

	"github.com/nexus-rpc/sdk-go/nexus"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/fathomchat/chat-plane/internal/config"
	"github.com/fathomchat/chat-plane/internal/events"
	"github.com/fathomchat/chat-plane/internal/exa"
	"github.com/fathomchat/chat-plane/internal/store/postgres"
	"github.com/fathomchat/chat-plane/internal/workflows"
)

type stubWorker struct {
	runErr              error
	startErr            error
	registeredWorkflows int
}

func (s *stubWorker) RegisterWorkflow(w interface{}) {
	s.registeredWorkflows++
}

func (s *stubWorker) RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions) {}

func (s *stubWorker) RegisterDynamicWorkflow(w interface{}, options workflow.DynamicRegisterOptions) {
}

func (s *stubWorker) RegisterActivity(a interface{}) {}

func (s *stubWorker) RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions) {}

func (s *stubWorker) RegisterDynamicActivity(a interface{}, options activity.DynamicRegisterOptions) {
}

func (s *stubWorker) RegisterNexusService(_ *nexus.Service) {}

func (s *stubWorker) Start() error {
	return s.startErr
}

func (s *stubWorker) Run(_ <-chan interface{}) error {
	return s.runErr
}

func (s *stubWorker) Stop() {}

func captureWorkerDeps() func() {
	origLoadConfig := loadConfig
	origDialTemporal := dialTemporal
	origNewStore := newStore
	origNewActivities := newActivities
	origNewWorker := newWorker
	origWorkerInterrupt := workerInterrupt

	return func() {
		loadConfig = origLoadConfig
		dialTemporal = origDialTemporal
		newStore = origNewStore
		newActivities = origNewActivities
		newWorker = origNewWorker
		workerInterrupt = origWorkerInterrupt
	}
}

func TestRunSuccess(t *testing.T) {
	restore := captureWorkerDeps()
	t.Cleanup(restore)

	loadConfig = func() (config.Config, error) {
		return config.Config{
			PostgresURL:     "postgres://example",
			TemporalAddress: "localhost:7233",
			ChatPlaneURL:    "http://localhost:8080",
		}, nil
	}
	dialTemporal = func(_ client.Options) (client.Client, error) {
		return nil, nil
	}
	newStore = func(_ string) (*postgres.PostgresStore, error) {
		return &postgres.PostgresStore{}, nil
	}
	planeURL := ""
	newActivities = func(_ *postgres.PostgresStore, _ *events.Broker, _ *exa.Client, chatPlaneURL string, _ ...workflows.WebsetActivitiesOption) *workflows.WebsetActivities {
		planeURL = chatPlaneURL
		return &workflows.WebsetActivities{}
	}
	registered := &stubWorker{}
	newWorker = func(_ client.Client, _ string, _ worker.Options) worker.Worker {
		return registered
	}
	workerInterrupt = func() <-chan interface{} {
		return make(chan interface{})
	}

	if err := run(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if planeURL != "http://localhost:8080" {
		t.Fatalf("activities built with chat plane URL %q", planeURL)
	}
	if registered.registeredWorkflows != 2 {
		t.Fatalf("registered %d workflows, want 2", registered.registeredWorkflows)
	}
}

func TestRunConfigLoadFailure(t *testing.T) {
	restore := captureWorkerDeps()
	t.Cleanup(restore)

	loadConfig = func() (config.Config, error) {
		return config.Config{}, errors.New("config load failed")
	}

	if err := run(); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestRunTemporalClientFailure(t *testing.T) {
	restore := captureWorkerDeps()
	t.Cleanup(restore)

	loadConfig = func() (config.Config, error) {
		return config.Config{TemporalAddress: "localhost:7233"}, nil
	}
	dialTemporal = func(_ client.Options) (client.Client, error) {
		return nil, errors.New("temporal dial failed")
	}

	if err := run(); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestRunStoreInitFailure(t *testing.T) {
	restore := captureWorkerDeps()
	t.Cleanup(restore)

	loadConfig = func() (config.Config, error) {
		return config.Config{
			PostgresURL:     "postgres://example",
			TemporalAddress: "localhost:7233",
		}, nil
	}
	dialTemporal = func(_ client.Options) (client.Client, error) {
		return nil, nil
	}
	newStore = func(_ string) (*postgres.PostgresStore, error) {
		return nil, errors.New("store init failed")
	}

	if err := run(); err == nil {
		t.Fatal("expected error, got nil")
	}
}
