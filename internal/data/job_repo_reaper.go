package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/siqueira-campos/imoveis-jobs/internal/core"
	"github.com/siqueira-campos/imoveis-jobs/internal/data/pgxutil"
)

// Reaper advisory locks. Major key 1000 namespaces the reaper; each sweep has
// its own minor key so concurrent reaper instances skip work instead of
// serializing on each other.
const (
	reaperLockMajor       = 1000
	reaperLockRequeue     = 1
	reaperLockFailPending = 2
	reaperLockDelete      = 3
)

// reaperSweep runs one batched statement under a try-lock transaction and
// reports how many rows it touched. Losing the lock reports zero work, which
// the caller treats as "done for this pass".
func (r *JobRepo) reaperSweep(ctx context.Context, minorKey int, stmt func(tx *sql.Tx, now time.Time) (sql.Result, error)) (int64, error) {
	var affected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			err := tx.QueryRowContext(ctx,
				"SELECT pg_try_advisory_xact_lock($1, $2)", reaperLockMajor, minorKey,
			).Scan(&locked)
			if err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				return nil
			}

			res, err := stmt(tx, r.timeProvider.Now())
			if err != nil {
				return err
			}
			affected, err = res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// RequeueExpiredLeases returns running jobs whose lease has lapsed to pending
// across all queues. Claim-time requeue in ReserveNext handles the busy case;
// this sweep covers queues with no active workers.
func (r *JobRepo) RequeueExpiredLeases(ctx context.Context, batchSize int) (int64, error) {
	return r.reaperSweep(ctx, reaperLockRequeue, func(tx *sql.Tx, now time.Time) (sql.Result, error) {
		res, err := tx.ExecContext(ctx, `
			UPDATE jobs
			SET status = 'pending',
				lease_expires_at = NULL,
				updated_at = $1
			WHERE id IN (
				SELECT id FROM jobs
				WHERE status = 'running'
				  AND lease_expires_at IS NOT NULL
				  AND lease_expires_at < $1
				ORDER BY lease_expires_at
				LIMIT $2
			)
		`, now.UTC(), batchSize)
		if err != nil {
			return nil, fmt.Errorf("requeue expired leases: %w", err)
		}
		return res, nil
	})
}

// FailStalePendingJobs fails pending jobs older than maxAge that no worker
// ever picked up, batchSize at a time.
func (r *JobRepo) FailStalePendingJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	return r.reaperSweep(ctx, reaperLockFailPending, func(tx *sql.Tx, now time.Time) (sql.Result, error) {
		res, err := tx.ExecContext(ctx, `
			UPDATE jobs
			SET status = 'failed',
				last_error = 'Job timed out in pending status',
				completed_at = $1,
				updated_at = $1
			WHERE id IN (
				SELECT id FROM jobs
				WHERE status = 'pending'
				  AND created_at < $2
				ORDER BY created_at
				LIMIT $3
			)
		`, now.UTC(), now.Add(-maxAge).UTC(), batchSize)
		if err != nil {
			return nil, fmt.Errorf("fail stale pending jobs: %w", err)
		}
		return res, nil
	})
}

// DeleteOldJobs deletes terminal jobs past their retention window, batchSize
// at a time. Jobs that never set completed_at age on updated_at instead.
func (r *JobRepo) DeleteOldJobs(ctx context.Context, params core.DeleteOldJobsParams) (int64, error) {
	if !params.Status.Valid() {
		return 0, fmt.Errorf("invalid job status: %s", params.Status)
	}

	return r.reaperSweep(ctx, reaperLockDelete, func(tx *sql.Tx, now time.Time) (sql.Result, error) {
		cutoff := now.Add(-params.MaxAge).UTC()
		res, err := tx.ExecContext(ctx, `
			DELETE FROM jobs
			WHERE id IN (
				SELECT id FROM jobs
				WHERE status = $1
				  AND (completed_at < $2 OR (completed_at IS NULL AND updated_at < $2))
				ORDER BY COALESCE(completed_at, updated_at)
				LIMIT $3
			)
		`, params.Status, cutoff, params.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("delete old jobs: %w", err)
		}
		return res, nil
	})
}
