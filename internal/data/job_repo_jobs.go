package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/siqueira-campos/imoveis-jobs/internal/core"
	"github.com/siqueira-campos/imoveis-jobs/internal/data/pgxutil"
	"github.com/siqueira-campos/imoveis-jobs/internal/domain/model"
)

// newJob carries everything needed to insert one job row.
type newJob struct {
	ID         string
	Req        *model.CreateJobRequest
	Queue      model.Queue
	MaxRetries int
}

// Claim query: pick the oldest due pending job in the queue, skipping rows
// other workers already have locked, and flip it to running in the same
// statement so the claim is atomic.
const claimNextSQL = `
  WITH cte AS (
    SELECT id FROM jobs
    WHERE queue = $1 AND status = 'pending' AND scheduled_at <= $2
    ORDER BY scheduled_at ASC, created_at ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE jobs j
  SET
    status = 'running',
    started_at = COALESCE(j.started_at, $3),
    lease_expires_at = $4,
    updated_at = $5
  FROM cte
  WHERE j.id = cte.id
  RETURNING j.id, j.type, j.queue, j.status, j.payload, j.result, j.scheduled_at, j.started_at, j.completed_at, j.retry_count, j.max_retries, j.last_error, j.lease_expires_at, j.created_at, j.updated_at`

// Create inserts a new job and notifies the queue's listen channel, both in
// one transaction so listeners never wake up before the row is visible.
func (r *JobRepo) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	params, err := r.prepareNewJob(req)
	if err != nil {
		return nil, err
	}

	var job *model.Job
	txErr := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			var insertErr error
			job, insertErr = r.insertJob(ctx, tx, params)
			return insertErr
		},
	})
	if txErr != nil {
		return nil, txErr
	}
	return job, nil
}

// CreateInTx inserts a job inside a caller-owned transaction, so business
// writes and their follow-up jobs commit or roll back together.
func (r *JobRepo) CreateInTx(ctx context.Context, sqlTx *sql.Tx, req *model.CreateJobRequest) (*model.Job, error) {
	if sqlTx == nil {
		return nil, errors.New("transaction is required")
	}

	params, err := r.prepareNewJob(req)
	if err != nil {
		return nil, err
	}

	query, args := insertJobQuery(params, r.insertScheduledAt(params))
	job, err := scanJob(sqlTx.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	if err := notifyQueue(ctx, sqlTx.ExecContext, params.Queue, job.ID); err != nil {
		return nil, err
	}
	return job, nil
}

// prepareNewJob validates the request and resolves the queue, retry ceiling
// and id. Ids are generated client-side so the job can be referenced before
// the insert commits.
func (r *JobRepo) prepareNewJob(req *model.CreateJobRequest) (*newJob, error) {
	if req == nil {
		return nil, errors.New("create job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	queue := req.Type.Queue()
	maxRetries := r.defaultMaxAttempts(queue)
	if req.MaxRetries > 0 {
		maxRetries = req.MaxRetries
	}

	return &newJob{
		ID:         uuid.NewString(),
		Req:        req,
		Queue:      queue,
		MaxRetries: maxRetries,
	}, nil
}

func (r *JobRepo) insertJob(ctx context.Context, tx pgx.Tx, params *newJob) (*model.Job, error) {
	query, args := insertJobQuery(params, r.insertScheduledAt(params))

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	job, err := firstJob(rows)
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	exec := func(ctx context.Context, sql string, args ...any) (any, error) {
		return tx.Exec(ctx, sql, args...)
	}
	if err := notifyQueue(ctx, exec, params.Queue, job.ID); err != nil {
		return nil, err
	}
	return job, nil
}

func (r *JobRepo) insertScheduledAt(params *newJob) time.Time {
	if params.Req.ScheduledAt != nil {
		return params.Req.ScheduledAt.UTC()
	}
	return r.timeProvider.Now().UTC()
}

func insertJobQuery(p *newJob, scheduledAt time.Time) (string, []any) {
	query := `
      INSERT INTO jobs(id, type, queue, status, payload, scheduled_at, max_retries)
      VALUES ($1,$2,$3,'pending',$4,$5,$6)
      RETURNING ` + jobColumns

	args := []any{
		p.ID,
		p.Req.Type,
		p.Queue,
		[]byte(p.Req.Payload),
		scheduledAt,
		p.MaxRetries,
	}
	return query, args
}

// notifyQueue sends pg_notify on the queue's channel. Routed through a
// function value so pgx and database/sql transactions share the same path.
func notifyQueue[T any](ctx context.Context, exec func(context.Context, string, ...any) (T, error), queue model.Queue, jobID string) error {
	channel := "job_added_" + string(queue)
	if _, err := exec(ctx, `SELECT pg_notify($1::text, $2::text)`, channel, jobID); err != nil {
		return fmt.Errorf("send job notification: %w", err)
	}
	return nil
}

// firstJob reads exactly one job from the rows, translating an empty result
// set into pgx.ErrNoRows.
func firstJob(rows pgx.Rows) (*model.Job, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}

	job, err := scanJob(rows)
	if err != nil {
		return nil, err
	}
	return job, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanJob maps one jobs row onto the model, converting the nullable columns
// to pointers and copying byte slices the driver may reuse.
func scanJob(scanner rowScanner) (*model.Job, error) {
	var (
		job            model.Job
		payload        []byte
		result         []byte
		lastError      sql.NullString
		startedAt      sql.NullTime
		completedAt    sql.NullTime
		leaseExpiresAt sql.NullTime
	)

	err := scanner.Scan(
		&job.ID,
		&job.Type,
		&job.Queue,
		&job.Status,
		&payload,
		&result,
		&job.ScheduledAt,
		&startedAt,
		&completedAt,
		&job.RetryCount,
		&job.MaxRetries,
		&lastError,
		&leaseExpiresAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Payload = copyRawJSON(payload, true)
	job.Result = copyRawJSON(result, false)
	job.LastError = nullableString(lastError)
	job.StartedAt = nullableTime(startedAt)
	job.CompletedAt = nullableTime(completedAt)
	job.LeaseExpiresAt = nullableTime(leaseExpiresAt)
	return &job, nil
}

// copyRawJSON copies driver-owned bytes. Empty payloads normalise to {};
// empty results stay nil so a never-completed job is distinguishable.
func copyRawJSON(raw []byte, emptyObject bool) json.RawMessage {
	if len(raw) == 0 {
		if emptyObject {
			return json.RawMessage(`{}`)
		}
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// Advisory lock namespace for the claim-path requeue; the minor key hashes
// the queue name so email and pdf claims never contend with each other.
const claimRequeueLockMajor int64 = 1001

func claimRequeueLockMinor(queue model.Queue) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(queue))
	return int64(h.Sum32() & math.MaxInt32)
}

// requeueExpired returns jobs with an expired lease to pending. Runs under a
// try-lock so only one claimer per queue pays for it; losing the lock is
// fine, somebody else just did the work.
func (r *JobRepo) requeueExpired(ctx context.Context, queue model.Queue) (int64, error) {
	var requeued int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			err := tx.QueryRowContext(ctx,
				"SELECT pg_try_advisory_xact_lock($1::integer, $2::integer)",
				claimRequeueLockMajor, claimRequeueLockMinor(queue),
			).Scan(&locked)
			if err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				return nil
			}

			res, err := tx.ExecContext(ctx, `
          UPDATE jobs
          SET status = 'pending', lease_expires_at = NULL
          WHERE queue = $1 AND status = 'running'
            AND lease_expires_at IS NOT NULL
            AND lease_expires_at < $2
        `, queue, r.timeProvider.Now().UTC())
			if err != nil {
				return fmt.Errorf("requeue expired: %w", err)
			}
			requeued, err = res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return requeued, nil
}

// ReserveNext atomically claims the next due job in the queue and starts its
// lease. Returns model.ErrNoJobsAvailable when the queue has nothing due.
func (r *JobRepo) ReserveNext(ctx context.Context, queue model.Queue, leaseSeconds int) (*model.Job, error) {
	if !queue.Valid() {
		return nil, fmt.Errorf("invalid queue: %s", queue)
	}

	// Recover leases dropped by crashed workers before claiming, so their
	// jobs compete in this very claim instead of waiting for the reaper.
	if _, err := r.requeueExpired(ctx, queue); err != nil {
		return nil, fmt.Errorf("requeue expired jobs: %w", err)
	}

	var job *model.Job
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
		Fn: func(tx pgx.Tx) error {
			now := r.timeProvider.Now()
			leaseExpiresAt := now.Add(time.Duration(leaseSeconds) * time.Second)

			rows, err := tx.Query(ctx, claimNextSQL,
				queue, now.UTC(), now.UTC(), leaseExpiresAt.UTC(), now.UTC())
			if err != nil {
				return fmt.Errorf("reserve job: %w", err)
			}
			defer rows.Close()

			j, err := firstJob(rows)
			if errors.Is(err, pgx.ErrNoRows) {
				return model.ErrNoJobsAvailable
			}
			if err != nil {
				return fmt.Errorf("reserve job: %w", err)
			}
			job = j
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Heartbeat pushes the lease expiry of a running job forward. Returns false
// when the job is no longer running, which means the lease was lost.
func (r *JobRepo) Heartbeat(ctx context.Context, jobID string, leaseSeconds int) (bool, error) {
	if leaseSeconds <= 0 {
		return false, errors.New("leaseSeconds must be positive")
	}

	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET lease_expires_at = $2,
		    updated_at = $3
		WHERE id = $1 AND status = 'running'
	`, jobID, now.Add(time.Duration(leaseSeconds)*time.Second), now)
	if err != nil {
		return false, fmt.Errorf("heartbeat job: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("heartbeat rows affected: %w", err)
	}
	return affected > 0, nil
}

// Complete marks a running job as completed and stores its result. Returns
// false when the job is no longer running, which means the lease was lost.
func (r *JobRepo) Complete(ctx context.Context, id string, result []byte) (bool, error) {
	now := r.timeProvider.Now().UTC()

	var resultArg any
	if len(result) > 0 {
		resultArg = result
	}

	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'completed',
		    result = $2,
		    completed_at = $3,
		    updated_at = $4,
		    lease_expires_at = NULL
		WHERE id = $1 AND status = 'running'
	`, id, resultArg, now, now)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete rows affected: %w", err)
	}
	return affected > 0, nil
}

// FailAttempt records a failed attempt. The CASE guard decides terminally:
// when the attempt that just failed was the last one the job flips to failed,
// otherwise it returns to pending scheduled at now plus the retry delay.
// Returns nil when the job was not running (lease lost to another worker).
func (r *JobRepo) FailAttempt(ctx context.Context, params core.FailAttemptParams) (*model.Job, error) {
	now := r.timeProvider.Now()

	retryAt := now
	if params.RetryDelay != nil && *params.RetryDelay > 0 {
		retryAt = now.Add(*params.RetryDelay)
	}

	query := `
      UPDATE jobs
      SET
        last_error = $2,
        retry_count = retry_count + 1,
        status = CASE WHEN retry_count + 1 >= max_retries THEN 'failed' ELSE 'pending' END,
        completed_at = CASE WHEN retry_count + 1 >= max_retries THEN $3::timestamptz ELSE NULL END,
        lease_expires_at = NULL,
        scheduled_at = CASE WHEN retry_count + 1 >= max_retries THEN scheduled_at
                            ELSE $4::timestamptz END,
        updated_at = $5
      WHERE id = $1 AND status = 'running'
      RETURNING ` + jobColumns

	row := r.DB.QueryRowContext(ctx, query,
		params.ID, params.ErrMsg, now.UTC(), retryAt.UTC(), now.UTC())

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fail job attempt: %w", err)
	}
	return job, nil
}

// Stats counts the queue's jobs per status.
func (r *JobRepo) Stats(ctx context.Context, queue model.Queue) (*model.JobStats, error) {
	var s model.JobStats
	err := r.DB.QueryRowContext(ctx, `
  SELECT
    count(*) FILTER (WHERE status = 'pending')   AS pending,
    count(*) FILTER (WHERE status = 'running')   AS running,
    count(*) FILTER (WHERE status = 'completed') AS completed,
    count(*) FILTER (WHERE status = 'failed')    AS failed
  FROM jobs
  WHERE queue = $1
  `, queue).Scan(&s.Pending, &s.Running, &s.Completed, &s.Failed)
	if err != nil {
		return nil, fmt.Errorf("failed to get job stats: %w", err)
	}
	return &s, nil
}

// WaitForNotification blocks on the queue's LISTEN channel until a job is
// added, the context ends, or the connection drops. It checks out a dedicated
// pool connection because LISTEN is connection-scoped.
func (r *JobRepo) WaitForNotification(ctx context.Context, queue model.Queue) error {
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer conn.Close() //nolint:errcheck

	channel := "job_added_" + string(queue)
	quoted := pgx.Identifier{channel}.Sanitize()

	if _, err := conn.ExecContext(ctx, "LISTEN "+quoted); err != nil {
		return fmt.Errorf("listen %s: %w", channel, err)
	}
	// UNLISTEN with a fresh context so the channel is released even when the
	// wait was cancelled.
	defer conn.ExecContext(context.Background(), "UNLISTEN "+quoted) //nolint:errcheck

	return conn.Raw(func(dc any) error {
		sc, ok := dc.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		_, err := sc.Conn().WaitForNotification(ctx)
		return err
	})
}

// GetByID retrieves a job by its id.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	var job *model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, err := pgxConn.Query(ctx, `
			SELECT `+jobColumns+`
			FROM jobs
			WHERE id = $1
		`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		job, err = firstJob(rows)
		return err
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// Delete removes a terminal or unclaimed job. The WHERE clause is the real
// guard; the re-check afterwards only exists to tell the caller why nothing
// was deleted.
func (r *JobRepo) Delete(ctx context.Context, id string) error {
	now := r.timeProvider.Now()
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM jobs
		WHERE id = $1
		  AND status IN ('pending', 'completed', 'failed')
		  AND (lease_expires_at IS NULL OR lease_expires_at <= $2)
	`, id, now.UTC())
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	job, err := r.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return ErrJobNotFound
		}
		return fmt.Errorf("failed to re-check job after delete attempt: %w", err)
	}

	switch {
	case job.Status == model.JobStatusRunning:
		return ErrJobNotDeletable
	case job.LeaseExpiresAt != nil && now.Before(*job.LeaseExpiresAt):
		return ErrJobReserved
	default:
		return errors.New("unexpected state: job is in deletable state but delete failed")
	}
}
