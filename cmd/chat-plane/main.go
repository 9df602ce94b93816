package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.temporal.io/sdk/client"

	"github.com/fathomchat/chat-plane/internal/api"
	"github.com/fathomchat/chat-plane/internal/config"
	"github.com/fathomchat/chat-plane/internal/events"
	"github.com/fathomchat/chat-plane/internal/exa"
	"github.com/fathomchat/chat-plane/internal/store/postgres"
	"github.com/fathomchat/chat-plane/internal/workflows"
)

type server interface {
	Start(ctx context.Context, addr string) error
}

var (
	loadConfig = func() (config.Config, error) {
		return config.Load(), nil
	}
	newBroker = events.NewBroker
	newStore  = func(conn string) (*postgres.PostgresStore, error) {
		return postgres.New(conn)
	}
	dialTemporal       = client.Dial
	newWorkflowService = workflows.NewService
	newExaClient       = exa.NewClient
	newServer          = func(store *postgres.PostgresStore, broker *events.Broker, workflows *workflows.Service, items *exa.Client, cfg config.Config) server {
		return api.NewServer(store, broker, workflows, items, cfg)
	}
	notifyContext = signal.NotifyContext
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := notifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	broker := newBroker()
	store, err := newStore(cfg.PostgresURL)
	if err != nil {
		return err
	}

	workflowClient, err := dialTemporal(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		return err
	}
	if workflowClient != nil {
		defer workflowClient.Close()
	}
	workflowService := newWorkflowService(workflowClient, cfg.TemporalTaskQueue)

	exaClient := newExaClient(exa.Config{
		APIKey:            cfg.ExaAPIKey,
		BaseURL:           cfg.ExaBaseURL,
		RequestsPerSecond: cfg.ExaRequestsPerSec,
		Burst:             cfg.ExaBurst,
	})

	server := newServer(store, broker, workflowService, exaClient, cfg)

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("Fathom chat plane listening on %s", addr)
	if err := server.Start(ctx, addr); err != nil {
		return err
	}

	return nil
}
