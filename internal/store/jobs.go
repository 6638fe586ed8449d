package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/davidgr87/whats-that-sound/internal/domain"
)

const jobColumns = `id, folder_path, job_type, status, metadata_json, user_feedback,
	artist_hint, result_json, error, created_at, updated_at, started_at, completed_at`

// Enqueue inserts a new queued job and returns it with its assigned id.
func (s *Store) Enqueue(job *domain.Job) (*domain.Job, error) {
	now := time.Now().UTC()
	job.Status = domain.JobStatusQueued
	job.CreatedAt = now
	job.UpdatedAt = now

	res, err := s.Exec(`INSERT INTO jobs (folder_path, job_type, status, metadata_json, user_feedback, artist_hint, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.FolderPath, job.Type, job.Status, job.MetadataJSON, job.UserFeedback, job.ArtistHint, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read job id: %w", err)
	}
	job.ID = id
	return job, nil
}

// GetJob fetches one row by id.
func (s *Store) GetJob(id int64) (*domain.Job, error) {
	job := &domain.Job{}
	err := s.Get(job, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ClaimQueuedForAnalysis atomically claims the next queued job and moves it
// to analyzing. Scan jobs are selected ahead of analyze jobs because scans
// produce work for the pool; within a type, FIFO by id. Returns nil when
// nothing is queued.
func (s *Store) ClaimQueuedForAnalysis() (*domain.Job, error) {
	return s.claim(domain.JobStatusQueued, domain.JobStatusAnalyzing,
		`SELECT `+jobColumns+` FROM jobs WHERE status = ?
		 ORDER BY CASE WHEN job_type = 'scan' THEN 0 ELSE 1 END, id ASC LIMIT 1`)
}

// ClaimAcceptedForMove atomically claims the oldest accepted job and moves
// it to moving. Returns nil when nothing is accepted.
func (s *Store) ClaimAcceptedForMove() (*domain.Job, error) {
	return s.claim(domain.JobStatusAccepted, domain.JobStatusMoving,
		`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY id ASC LIMIT 1`)
}

// claim runs SELECT then UPDATE inside one immediate transaction so that
// concurrent claimers (including other processes) never receive the same row.
func (s *Store) claim(from, to domain.JobStatus, selectQuery string) (*domain.Job, error) {
	tx, err := s.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim: %w", err)
	}
	defer tx.Rollback()

	job := &domain.Job{}
	err = tx.Get(job, selectQuery, from)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select claimable job: %w", err)
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(`UPDATE jobs SET status = ?, started_at = ?, updated_at = ? WHERE id = ?`,
		to, now, now, job.ID); err != nil {
		return nil, fmt.Errorf("failed to claim job %d: %w", job.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	job.Status = to
	job.StartedAt = &now
	job.UpdatedAt = now
	return job, nil
}

// Approve records a generated proposal and moves an analyzing job to ready.
func (s *Store) Approve(id int64, resultJSON string) error {
	now := time.Now().UTC()
	res, err := s.Exec(`UPDATE jobs SET status = ?, result_json = ?, error = '', completed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		domain.JobStatusReady, resultJSON, now, now, id, domain.JobStatusAnalyzing)
	if err != nil {
		return fmt.Errorf("failed to approve job %d: %w", id, err)
	}
	return requireRow(res)
}

// Fail records a diagnostic and moves an in-flight job to error.
func (s *Store) Fail(id int64, message string) error {
	now := time.Now().UTC()
	res, err := s.Exec(`UPDATE jobs SET status = ?, error = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		domain.JobStatusError, message, now, now, id, domain.JobStatusAnalyzing, domain.JobStatusMoving)
	if err != nil {
		return fmt.Errorf("failed to fail job %d: %w", id, err)
	}
	return requireRow(res)
}

// Complete finishes a scan job (from analyzing) or a move job (from moving).
func (s *Store) Complete(id int64) error {
	now := time.Now().UTC()
	res, err := s.Exec(`UPDATE jobs SET status = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		domain.JobStatusCompleted, now, now, id, domain.JobStatusAnalyzing, domain.JobStatusMoving)
	if err != nil {
		return fmt.Errorf("failed to complete job %d: %w", id, err)
	}
	return requireRow(res)
}

// UpdateStatus performs a validated conditional transition on one row.
func (s *Store) UpdateStatus(id int64, from, to domain.JobStatus) error {
	if !domain.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	now := time.Now().UTC()
	res, err := s.Exec(`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, now, id, from)
	if err != nil {
		return fmt.Errorf("failed to update job %d: %w", id, err)
	}
	return requireRow(res)
}

// ResetStaleAnalyzing re-queues analyzing jobs older than maxAge so a dead
// worker cannot leave a row permanently claimed. Returns the number of rows
// reset.
func (s *Store) ResetStaleAnalyzing(maxAge time.Duration) (int64, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-maxAge)
	res, err := s.Exec(`UPDATE jobs SET status = ?, started_at = NULL, updated_at = ?
		WHERE status = ? AND started_at < ?`,
		domain.JobStatusQueued, now, domain.JobStatusAnalyzing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to reset stale jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// HasAnyForFolder reports whether any job exists for the folder, optionally
// restricted to the given statuses. The scanner uses it to keep enqueueing
// idempotent per folder.
func (s *Store) HasAnyForFolder(path string, statuses ...domain.JobStatus) (bool, error) {
	query := `SELECT COUNT(*) FROM jobs WHERE folder_path = ?`
	args := []interface{}{path}
	if len(statuses) > 0 {
		query += ` AND status IN (` + inPlaceholders(len(statuses)) + `)`
		for _, st := range statuses {
			args = append(args, st)
		}
	}
	var count int
	if err := s.Get(&count, query, args...); err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetResult returns the newest ready row for the folder, or nil when none
// exists.
func (s *Store) GetResult(path string) (*domain.Job, error) {
	job := &domain.Job{}
	err := s.Get(job, `SELECT `+jobColumns+` FROM jobs WHERE folder_path = ? AND status = ?
		ORDER BY id DESC LIMIT 1`, path, domain.JobStatusReady)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// UpdateLatestStatusForFolder transitions the newest row for the folder,
// provided its current status is one of from. Transitions into terminal
// statuses stamp completed_at; transitions back to queued clear the
// execution fields.
func (s *Store) UpdateLatestStatusForFolder(path string, from []domain.JobStatus, to domain.JobStatus) error {
	tx, err := s.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transition: %w", err)
	}
	defer tx.Rollback()

	var row struct {
		ID     int64            `db:"id"`
		Status domain.JobStatus `db:"status"`
	}
	err = tx.Get(&row, `SELECT id, status FROM jobs WHERE folder_path = ? ORDER BY id DESC LIMIT 1`, path)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	allowed := false
	for _, st := range from {
		if st == row.Status {
			allowed = true
			break
		}
	}
	if !allowed || !domain.CanTransition(row.Status, to) {
		return fmt.Errorf("%w: %s -> %s (folder %s)", ErrInvalidTransition, row.Status, to, path)
	}

	now := time.Now().UTC()
	switch {
	case to.Terminal():
		_, err = tx.Exec(`UPDATE jobs SET status = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
			to, now, now, row.ID)
	case to == domain.JobStatusQueued:
		_, err = tx.Exec(`UPDATE jobs SET status = ?, started_at = NULL, completed_at = NULL, error = '', updated_at = ? WHERE id = ?`,
			to, now, row.ID)
	default:
		_, err = tx.Exec(`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`, to, now, row.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to transition job %d: %w", row.ID, err)
	}
	return tx.Commit()
}

// RequeueForReconsideration returns the newest row for the folder to queued
// with fresh metadata and user feedback, clearing the previous run's result.
func (s *Store) RequeueForReconsideration(path, metadataJSON, feedback string) error {
	tx, err := s.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin requeue: %w", err)
	}
	defer tx.Rollback()

	var row struct {
		ID     int64            `db:"id"`
		Status domain.JobStatus `db:"status"`
	}
	err = tx.Get(&row, `SELECT id, status FROM jobs WHERE folder_path = ? ORDER BY id DESC LIMIT 1`, path)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if row.Status.Terminal() {
		return fmt.Errorf("%w: %s -> %s (folder %s)", ErrInvalidTransition, row.Status, domain.JobStatusQueued, path)
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(`UPDATE jobs SET status = ?, metadata_json = ?, user_feedback = ?,
		result_json = '', error = '', started_at = NULL, completed_at = NULL, updated_at = ?
		WHERE id = ?`,
		domain.JobStatusQueued, metadataJSON, feedback, now, row.ID); err != nil {
		return fmt.Errorf("failed to requeue job %d: %w", row.ID, err)
	}
	return tx.Commit()
}

// SetResultForFolder replaces the proposal on the newest ready row for the
// folder. Used when a human edits the proposal before accepting it.
func (s *Store) SetResultForFolder(path, resultJSON string) error {
	job, err := s.GetResult(path)
	if err != nil {
		return err
	}
	if job == nil {
		return ErrNotFound
	}
	now := time.Now().UTC()
	res, err := s.Exec(`UPDATE jobs SET result_json = ?, updated_at = ? WHERE id = ? AND status = ?`,
		resultJSON, now, job.ID, domain.JobStatusReady)
	if err != nil {
		return fmt.Errorf("failed to update result for job %d: %w", job.ID, err)
	}
	return requireRow(res)
}

// Counts returns the status histogram over all rows, zero-filled for
// statuses with no rows.
func (s *Store) Counts() (map[domain.JobStatus]int, error) {
	rows := []struct {
		Status domain.JobStatus `db:"status"`
		N      int              `db:"n"`
	}{}
	if err := s.Select(&rows, `SELECT status, COUNT(*) AS n FROM jobs GROUP BY status`); err != nil {
		return nil, err
	}

	counts := make(map[domain.JobStatus]int, len(domain.AllStatuses))
	for _, st := range domain.AllStatuses {
		counts[st] = 0
	}
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

// RecentJobs returns the newest rows by updated_at, optionally restricted
// to the given statuses.
func (s *Store) RecentJobs(limit int, statuses ...domain.JobStatus) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := []interface{}{}
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + inPlaceholders(len(statuses)) + `)`
		for _, st := range statuses {
			args = append(args, st)
		}
	}
	query += ` ORDER BY updated_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	var jobs []*domain.Job
	if err := s.Select(&jobs, query, args...); err != nil {
		return nil, err
	}
	return jobs, nil
}

// ReadyJobs returns ready rows newest first.
func (s *Store) ReadyJobs(limit int) ([]*domain.Job, error) {
	var jobs []*domain.Job
	err := s.Select(&jobs, `SELECT `+jobColumns+` FROM jobs WHERE status = ?
		ORDER BY updated_at DESC, id DESC LIMIT ?`, domain.JobStatusReady, limit)
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// DeleteJob removes a row. Administrative use only; normal terminal states
// retain rows for audit.
func (s *Store) DeleteJob(id int64) error {
	res, err := s.Exec(`DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job %d: %w", id, err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidTransition
	}
	return nil
}
