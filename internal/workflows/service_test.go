package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"

	"github.com/fathomchat/chat-plane/internal/websets"
)

func serviceWebsetInput() WebsetInput {
	return WebsetInput{
		ChatID:     "chat-1",
		DocumentID: "doc-123",
		UserID:     "user-1",
		Request: websets.SearchRequest{
			Query:    "fintech startups in Berlin",
			Mode:     websets.ModeCompany,
			Criteria: []string{"Series A or later"},
			Count:    5,
		},
	}
}

func TestNewService_DefaultTaskQueue(t *testing.T) {
	mockClient := mocks.NewClient(t)
	service := NewService(mockClient, "")
	require.Equal(t, "chat-plane-tasks", service.taskQueue)
}

func TestStartWebset_Success(t *testing.T) {
	mockClient := mocks.NewClient(t)
	workflowRun := mocks.NewWorkflowRun(t)
	input := serviceWebsetInput()
	taskQueue := "chat-plane-test"

	mockClient.On(
		"ExecuteWorkflow",
		mock.Anything,
		mock.MatchedBy(func(opts client.StartWorkflowOptions) bool {
			return opts.ID == websetWorkflowID(input.DocumentID) && opts.TaskQueue == taskQueue
		}),
		mock.Anything,
		input,
	).Return(workflowRun, nil)

	service := NewService(mockClient, taskQueue)
	require.NoError(t, service.StartWebset(context.Background(), input))
}

func TestStartWebset_Error(t *testing.T) {
	mockClient := mocks.NewClient(t)
	input := serviceWebsetInput()
	expectedErr := errors.New("start failed")

	mockClient.On(
		"ExecuteWorkflow",
		mock.Anything,
		mock.Anything,
		mock.Anything,
		input,
	).Return((*mocks.WorkflowRun)(nil), expectedErr)

	service := NewService(mockClient, "chat-plane-test")
	require.ErrorIs(t, service.StartWebset(context.Background(), input), expectedErr)
}

func TestCancelWebset(t *testing.T) {
	mockClient := mocks.NewClient(t)
	mockClient.On("CancelWorkflow", mock.Anything, websetWorkflowID("doc-123"), "").Return(nil)

	service := NewService(mockClient, "chat-plane-test")
	require.NoError(t, service.CancelWebset(context.Background(), "doc-123"))
}

func TestStartResearch_Success(t *testing.T) {
	mockClient := mocks.NewClient(t)
	workflowRun := mocks.NewWorkflowRun(t)
	input := ResearchInput{TaskID: "task-1", ChatID: "chat-1", Instructions: "summarize the market"}
	taskQueue := "chat-plane-test"

	mockClient.On(
		"ExecuteWorkflow",
		mock.Anything,
		mock.MatchedBy(func(opts client.StartWorkflowOptions) bool {
			return opts.ID == researchWorkflowID(input.TaskID) && opts.TaskQueue == taskQueue
		}),
		mock.Anything,
		input,
	).Return(workflowRun, nil)

	service := NewService(mockClient, taskQueue)
	require.NoError(t, service.StartResearch(context.Background(), input))
}

func TestCancelResearch(t *testing.T) {
	mockClient := mocks.NewClient(t)
	mockClient.On("CancelWorkflow", mock.Anything, researchWorkflowID("task-1"), "").Return(nil)

	service := NewService(mockClient, "chat-plane-test")
	require.NoError(t, service.CancelResearch(context.Background(), "task-1"))
}
