package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/fathomchat/chat-plane/internal/websets"
)

const (
	WebsetTimeoutErrorType = "WebsetTimeout"

	WebsetStatusCompleted = "completed"
	WebsetStatusTimeout   = "timeout"
)

type WebsetInput struct {
	ChatID     string
	DocumentID string
	UserID     string
	Request    websets.SearchRequest
}

type WebsetResult struct {
	DocumentID string
	WebsetID   string
	Rows       int
	Status     string
}

// PopulateWebsetWorkflow drives a webset run end to end: announce the
// artifact, create the remote webset, poll it until idle, then persist and
// finish. Finalization runs on every path so the UI never shows a stuck
// spinner, even when creation fails or the poll loop times out.
func PopulateWebsetWorkflow(ctx workflow.Context, input WebsetInput) (WebsetResult, error) {
	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	logger := workflow.GetLogger(ctx)
	title := input.Request.Title()

	if err := workflow.ExecuteActivity(ctx, "AnnounceSheet", AnnounceInput{
		ChatID:     input.ChatID,
		DocumentID: input.DocumentID,
		Request:    input.Request,
	}).Get(ctx, nil); err != nil {
		logger.Error("sheet announcement failed", "error", err)
		return WebsetResult{}, err
	}

	created := CreateOutput{}
	if err := workflow.ExecuteActivity(ctx, "CreateWebset", CreateInput{
		ChatID:     input.ChatID,
		DocumentID: input.DocumentID,
		Request:    input.Request,
	}).Get(ctx, &created); err != nil {
		logger.Error("webset creation failed", "error", err)
		finalizeInput := FinalizeInput{
			ChatID:     input.ChatID,
			DocumentID: input.DocumentID,
			UserID:     input.UserID,
			Title:      title,
			Content:    websets.NewSheet(input.Request).Snapshot(),
			Failed:     true,
		}
		if finalizeErr := workflow.ExecuteActivity(ctx, "FinalizeWebset", finalizeInput).Get(ctx, nil); finalizeErr != nil {
			logger.Error("failed to finalize after creation failure", "error", finalizeErr)
		}
		return WebsetResult{}, err
	}

	populated := PopulateOutput{}
	if err := workflow.ExecuteActivity(ctx, "PopulateWebset", PopulateInput{
		ChatID:     input.ChatID,
		DocumentID: input.DocumentID,
		WebsetID:   created.WebsetID,
		Request:    input.Request,
	}).Get(ctx, &populated); err != nil {
		logger.Error("webset population failed", "error", err)
		finalizeInput := FinalizeInput{
			ChatID:     input.ChatID,
			DocumentID: input.DocumentID,
			UserID:     input.UserID,
			WebsetID:   created.WebsetID,
			Title:      title,
			Content:    websets.NewSheet(input.Request).Snapshot(),
			Failed:     true,
		}
		if finalizeErr := workflow.ExecuteActivity(ctx, "FinalizeWebset", finalizeInput).Get(ctx, nil); finalizeErr != nil {
			logger.Error("failed to finalize after population failure", "error", finalizeErr)
		}
		return WebsetResult{}, err
	}

	if err := workflow.ExecuteActivity(ctx, "FinalizeWebset", FinalizeInput{
		ChatID:     input.ChatID,
		DocumentID: input.DocumentID,
		UserID:     input.UserID,
		WebsetID:   created.WebsetID,
		Title:      title,
		Content:    populated.Content,
		Rows:       populated.Rows,
		TimedOut:   populated.TimedOut,
	}).Get(ctx, nil); err != nil {
		logger.Error("webset finalization failed", "error", err)
		return WebsetResult{}, err
	}

	result := WebsetResult{
		DocumentID: input.DocumentID,
		WebsetID:   created.WebsetID,
		Rows:       populated.Rows,
		Status:     WebsetStatusCompleted,
	}
	if populated.TimedOut {
		result.Status = WebsetStatusTimeout
		return result, temporal.NewApplicationError(
			"webset population timed out before reaching idle",
			WebsetTimeoutErrorType,
			input.DocumentID,
		)
	}
	return result, nil
}
