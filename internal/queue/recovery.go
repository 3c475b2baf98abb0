package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/analysis-service/internal/domain"
)

// StuckJobMessage is recorded on jobs failed by RequeueStuck.
const StuckJobMessage = "job exceeded the processing time limit"

// RecoveryReport summarizes one RequeueStuck pass.
type RecoveryReport struct {
	Requeued int
	Failed   int
}

// RequeueStuck returns jobs that have been PROCESSING for longer than
// olderThan to the pending list, or fails them with a stored FAILED result
// when their retries are exhausted. Removal from the processing set is the
// claim, so concurrent callers never recover the same job twice.
func (q *JobQueue) RequeueStuck(ctx context.Context, olderThan time.Duration) (RecoveryReport, error) {
	var report RecoveryReport

	ids, err := q.store.SetMembers(ctx, ProcessingSet)
	if err != nil {
		return report, fmt.Errorf("failed to list processing jobs: %w", err)
	}

	now := q.now()
	for _, id := range ids {
		job, err := q.GetJob(ctx, id)
		if errors.Is(err, ErrJobNotFound) {
			// The record expired; drop the dangling mark.
			if _, err := q.store.SetRemove(ctx, ProcessingSet, id); err != nil {
				return report, fmt.Errorf("failed to drop expired job %s: %w", id, err)
			}
			continue
		}
		if err != nil {
			return report, err
		}

		if job.Status != domain.JobStatusProcessing || job.StartedAt == nil ||
			now.Sub(*job.StartedAt) < olderThan {
			continue
		}

		claimed, err := q.store.SetRemove(ctx, ProcessingSet, id)
		if err != nil {
			return report, fmt.Errorf("failed to claim stuck job %s: %w", id, err)
		}
		if !claimed {
			continue
		}

		q.logger.Warn("recovering stuck job",
			"job_id", id,
			"started_at", job.StartedAt,
			"retry_count", job.RetryCount)

		if job.ResetForRetry() {
			if err := q.Enqueue(ctx, job); err != nil {
				return report, err
			}
			report.Requeued++
			continue
		}

		if err := job.MarkFailed(now, StuckJobMessage); err != nil {
			return report, err
		}
		if err := q.saveJob(ctx, job); err != nil {
			return report, err
		}
		result := domain.NewFailedResult(job.RecordID, StuckJobMessage, map[string]any{
			domain.StatRetryCount: job.RetryCount,
		})
		if err := q.StoreResult(ctx, job.ID, result); err != nil {
			return report, err
		}
		report.Failed++
	}

	return report, nil
}
