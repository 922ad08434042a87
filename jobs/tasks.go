package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Queue and task type identifiers.
const (
	QueueDefault = "default"

	TaskTokenSweep = "identity:token_sweep"
)

// TokenSweepPayload parameterises a refresh-token sweep run.
type TokenSweepPayload struct {
	// DryRun reports what would be flagged without writing.
	DryRun bool `json:"dry_run"`
}

// NewTokenSweepTask builds an asynq task that flags expired refresh tokens.
func NewTokenSweepTask(dryRun bool) (*asynq.Task, error) {
	payload, err := json.Marshal(TokenSweepPayload{DryRun: dryRun})
	if err != nil {
		return nil, fmt.Errorf("jobs: marshal token sweep payload: %w", err)
	}
	return asynq.NewTask(TaskTokenSweep, payload), nil
}
