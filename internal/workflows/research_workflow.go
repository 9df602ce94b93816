package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/fathomchat/chat-plane/internal/exa"
)

const ResearchTimeoutErrorType = "ResearchTimeout"

type ResearchInput struct {
	TaskID       string
	ChatID       string
	Instructions string
	OutputSchema map[string]any
}

type ResearchResult struct {
	ResearchID string
	Status     string
	Data       string
	Citations  []exa.Citation
}

// ResearchWorkflow runs a one-shot research task: submit it, then poll until
// it completes or fails. The poll activity owns the attempt budget; the
// workflow translates an exhausted budget into an application error.
func ResearchWorkflow(ctx workflow.Context, input ResearchInput) (ResearchResult, error) {
	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	logger := workflow.GetLogger(ctx)

	started := ResearchStartOutput{}
	if err := workflow.ExecuteActivity(ctx, "StartResearch", ResearchStartInput{
		ChatID:       input.ChatID,
		Instructions: input.Instructions,
		OutputSchema: input.OutputSchema,
	}).Get(ctx, &started); err != nil {
		logger.Error("research submission failed", "error", err)
		return ResearchResult{}, err
	}

	polled := ResearchPollOutput{}
	if err := workflow.ExecuteActivity(ctx, "PollResearch", ResearchPollInput{
		ChatID:     input.ChatID,
		ResearchID: started.ResearchID,
	}).Get(ctx, &polled); err != nil {
		logger.Error("research polling failed", "error", err)
		return ResearchResult{ResearchID: started.ResearchID}, err
	}
	if polled.TimedOut {
		return ResearchResult{ResearchID: started.ResearchID}, temporal.NewApplicationError(
			"research task did not settle within the poll budget",
			ResearchTimeoutErrorType,
			started.ResearchID,
		)
	}
	return ResearchResult{
		ResearchID: started.ResearchID,
		Status:     polled.Status,
		Data:       polled.Data,
		Citations:  polled.Citations,
	}, nil
}
