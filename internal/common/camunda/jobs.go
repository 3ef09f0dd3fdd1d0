package camunda

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// CompleteJob completes job with variables, retrying transient broker errors.
func CompleteJob(ctx context.Context, client worker.JobClient, job entities.Job, variables interface{}, retry *RetryConfig) error {
	return Retry(ctx, retry, "complete-job", func(ctx context.Context) error {
		cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(variables)
		if err != nil {
			return err
		}
		_, err = cmd.Send(ctx)
		return err
	})
}
