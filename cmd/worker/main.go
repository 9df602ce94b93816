package main

import (
	"log"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/fathomchat/chat-plane/internal/config"
	"github.com/fathomchat/chat-plane/internal/events"
	"github.com/fathomchat/chat-plane/internal/exa"
	"github.com/fathomchat/chat-plane/internal/store/postgres"
	"github.com/fathomchat/chat-plane/internal/workflows"
)

var (
	loadConfig = func() (config.Config, error) {
		return config.Load(), nil
	}
	dialTemporal = client.Dial
	newStore     = func(conn string) (*postgres.PostgresStore, error) {
		return postgres.New(conn)
	}
	newActivities = func(st *postgres.PostgresStore, broker *events.Broker, exaClient *exa.Client, chatPlaneURL string, opts ...workflows.WebsetActivitiesOption) *workflows.WebsetActivities {
		return workflows.NewWebsetActivities(st, broker, exaClient, chatPlaneURL, opts...)
	}
	newWorker       = worker.New
	workerInterrupt = worker.InterruptCh
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
	temporalClient, err := dialTemporal(client.Options{
		HostPort: cfg.TemporalAddress,
	})
	if err != nil {
		return err
	}
	if temporalClient != nil {
		defer temporalClient.Close()
	}

	store, err := newStore(cfg.PostgresURL)
	if err != nil {
		return err
	}

	exaClient := exa.NewClient(exa.Config{
		APIKey:            cfg.ExaAPIKey,
		BaseURL:           cfg.ExaBaseURL,
		RequestsPerSecond: cfg.ExaRequestsPerSec,
		Burst:             cfg.ExaBurst,
	})

	activities := newActivities(store, events.NewBroker(), exaClient, cfg.ChatPlaneURL,
		workflows.WithPollPolicy(time.Duration(cfg.WebsetPollMillis)*time.Millisecond, cfg.WebsetPollAttempts),
		workflows.WithResearchPolicy(time.Duration(cfg.ResearchPollMillis)*time.Millisecond, cfg.ResearchAttempts),
	)

	w := newWorker(temporalClient, cfg.TemporalTaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.PopulateWebsetWorkflow)
	w.RegisterWorkflow(workflows.ResearchWorkflow)
	w.RegisterActivity(activities)

	log.Println("Fathom task worker started")
	if err := w.Run(workerInterrupt()); err != nil {
		return err
	}

	return nil
}
