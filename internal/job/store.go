package job

import "context"

// Store persists job records keyed by (jobID, userID).
//
// Update is the conditional-update primitive: it reads the current
// record, applies mutate, and writes back only if the record has not
// changed since the read. Two concurrent updates against the same prior
// value cannot both succeed; the loser retries internally up to a
// bounded attempt count, then fails with a storage error. An error from
// mutate aborts the update and is returned unchanged.
type Store interface {
	Create(ctx context.Context, j *Job) error
	Get(ctx context.Context, jobID, userID string) (*Job, error)
	Update(ctx context.Context, jobID, userID string, mutate func(*Job) error) (*Job, error)
}
