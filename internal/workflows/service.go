package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
)

// Service is the thin wrapper the API uses to start and cancel runs without
// touching the Temporal client directly.
type Service struct {
	client    client.Client
	taskQueue string
}

func NewService(client client.Client, taskQueue string) *Service {
	if taskQueue == "" {
		taskQueue = "chat-plane-tasks"
	}
	return &Service{client: client, taskQueue: taskQueue}
}

func (s *Service) StartWebset(ctx context.Context, input WebsetInput) error {
	options := client.StartWorkflowOptions{
		ID:        websetWorkflowID(input.DocumentID),
		TaskQueue: s.taskQueue,
	}
	_, err := s.client.ExecuteWorkflow(ctx, options, PopulateWebsetWorkflow, input)
	return err
}

func (s *Service) CancelWebset(ctx context.Context, documentID string) error {
	return s.client.CancelWorkflow(ctx, websetWorkflowID(documentID), "")
}

func (s *Service) StartResearch(ctx context.Context, input ResearchInput) error {
	options := client.StartWorkflowOptions{
		ID:        researchWorkflowID(input.TaskID),
		TaskQueue: s.taskQueue,
	}
	_, err := s.client.ExecuteWorkflow(ctx, options, ResearchWorkflow, input)
	return err
}

func (s *Service) CancelResearch(ctx context.Context, taskID string) error {
	return s.client.CancelWorkflow(ctx, researchWorkflowID(taskID), "")
}

func websetWorkflowID(documentID string) string {
	return fmt.Sprintf("webset:%s", documentID)
}

func researchWorkflowID(taskID string) string {
	return fmt.Sprintf("research:%s", taskID)
}
