package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"tasksched-go/internal/schedule"
)

// SQLiteStore implements TaskStore on a sqlite database.
type SQLiteStore struct {
	db *sql.DB

	// hasSummaryColumn records whether notification_summary exists in the
	// table. Databases created before the column was introduced lack it;
	// reads and writes degrade by omitting the column instead of failing.
	hasSummaryColumn bool
}

// Open opens (or creates) the database at path, applies pending migrations,
// and returns a ready store.
func Open(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	store, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an already-open database without running migrations. The column
// set is probed once here; a legacy scheduled_tasks table without
// notification_summary is accepted.
func New(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}

	hasSummary, err := hasColumn(db, "scheduled_tasks", "notification_summary")
	if err != nil {
		return nil, fmt.Errorf("inspect schema: %w", err)
	}
	s.hasSummaryColumn = hasSummary
	return s, nil
}

// DB exposes the underlying handle for lifecycle management.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// hasColumn reports whether a table contains the named column.
func hasColumn(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// selectColumns builds the column list for reads. When the summary column is
// missing a literal empty string keeps the scan shape stable.
func (s *SQLiteStore) selectColumns() string {
	summary := "notification_summary"
	if !s.hasSummaryColumn {
		summary = "''"
	}
	return fmt.Sprintf(`id, user_id, task_name, %s, prompt, frequency,
		scheduled_time, scheduled_datetime, weekday,
		next_execution_at, last_executed_at,
		execution_count, fail_count, last_error, is_active,
		created_at, updated_at`, summary)
}

// CreateTask implements TaskStore.
func (s *SQLiteStore) CreateTask(ctx context.Context, t *ScheduledTask) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	cols := []string{
		"user_id", "task_name", "prompt", "frequency",
		"scheduled_time", "scheduled_datetime", "weekday",
		"next_execution_at", "is_active", "created_at", "updated_at",
	}
	args := []interface{}{
		t.UserID, t.TaskName, t.Prompt, string(t.Frequency),
		t.ScheduledTime, utcPtr(t.ScheduledDatetime), t.Weekday,
		utcPtr(t.NextExecutionAt), t.IsActive, t.CreatedAt, t.UpdatedAt,
	}
	if s.hasSummaryColumn {
		cols = append(cols, "notification_summary")
		args = append(args, t.NotificationSummary)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT INTO scheduled_tasks (%s) VALUES (%s)",
		strings.Join(cols, ", "), placeholders)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read generated id: %w", err)
	}
	t.ID = id
	return nil
}

// GetTask implements TaskStore.
func (s *SQLiteStore) GetTask(ctx context.Context, id int64) (*ScheduledTask, error) {
	query := fmt.Sprintf("SELECT %s FROM scheduled_tasks WHERE id = ?", s.selectColumns())
	row := s.db.QueryRowContext(ctx, query, id)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrTaskNotFound, id)
		}
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

// ListTasks implements TaskStore.
func (s *SQLiteStore) ListTasks(ctx context.Context, f TaskFilter) ([]*ScheduledTask, error) {
	query := fmt.Sprintf("SELECT %s FROM scheduled_tasks", s.selectColumns())
	var args []interface{}

	if f.ActiveOnly {
		query += " WHERE is_active = 1 ORDER BY next_execution_at ASC"
	} else {
		query += " ORDER BY next_execution_at DESC"
	}
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	return s.queryTasks(ctx, query, args...)
}

// DueTasks implements TaskStore.
func (s *SQLiteStore) DueTasks(ctx context.Context, now time.Time) ([]*ScheduledTask, error) {
	query := fmt.Sprintf(`SELECT %s FROM scheduled_tasks
		WHERE is_active = 1
		AND next_execution_at IS NOT NULL
		AND next_execution_at <= ?
		ORDER BY next_execution_at ASC`, s.selectColumns())
	return s.queryTasks(ctx, query, now.UTC())
}

// DeleteTask implements TaskStore.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM scheduled_tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: id %d", ErrTaskNotFound, id)
	}
	return nil
}

// ToggleTask implements TaskStore.
func (s *SQLiteStore) ToggleTask(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE scheduled_tasks SET is_active = NOT is_active, updated_at = ? WHERE id = ?",
		time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("toggle task %d: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return false, fmt.Errorf("%w: id %d", ErrTaskNotFound, id)
	}

	var active bool
	if err := s.db.QueryRowContext(ctx,
		"SELECT is_active FROM scheduled_tasks WHERE id = ?", id).Scan(&active); err != nil {
		return false, fmt.Errorf("read toggled state: %w", err)
	}
	return active, nil
}

// MarkExecuted implements TaskStore. A nil next deactivates the task instead
// of rescheduling it.
func (s *SQLiteStore) MarkExecuted(ctx context.Context, id int64, executedAt time.Time, next *time.Time) error {
	var (
		res sql.Result
		err error
	)
	now := time.Now().UTC()
	if next == nil {
		res, err = s.db.ExecContext(ctx, `
			UPDATE scheduled_tasks SET
				is_active = 0,
				last_executed_at = ?,
				execution_count = execution_count + 1,
				fail_count = 0,
				updated_at = ?
			WHERE id = ?`,
			executedAt.UTC(), now, id)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE scheduled_tasks SET
				last_executed_at = ?,
				next_execution_at = ?,
				execution_count = execution_count + 1,
				fail_count = 0,
				updated_at = ?
			WHERE id = ?`,
			executedAt.UTC(), next.UTC(), now, id)
	}
	if err != nil {
		return fmt.Errorf("mark task %d executed: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: id %d", ErrTaskNotFound, id)
	}
	return nil
}

// RecordFailure implements TaskStore. The increment and the threshold check
// happen in one statement so concurrent failures cannot lose counts.
func (s *SQLiteStore) RecordFailure(ctx context.Context, id int64, errMsg string, threshold int) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_tasks SET
			fail_count = fail_count + 1,
			last_error = ?,
			is_active = CASE WHEN fail_count + 1 >= ? THEN 0 ELSE is_active END,
			updated_at = ?
		WHERE id = ?`,
		errMsg, threshold, time.Now().UTC(), id)
	if err != nil {
		return 0, fmt.Errorf("record failure for task %d: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return 0, fmt.Errorf("%w: id %d", ErrTaskNotFound, id)
	}

	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT fail_count FROM scheduled_tasks WHERE id = ?", id).Scan(&count); err != nil {
		return 0, fmt.Errorf("read fail count: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) queryTasks(ctx context.Context, query string, args ...interface{}) ([]*ScheduledTask, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*ScheduledTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row scanner) (*ScheduledTask, error) {
	var (
		t             ScheduledTask
		frequency     string
		summary       sql.NullString
		schedTime     sql.NullString
		schedDatetime sql.NullTime
		weekday       sql.NullInt64
		nextExec      sql.NullTime
		lastExec      sql.NullTime
		lastError     sql.NullString
	)
	err := row.Scan(
		&t.ID, &t.UserID, &t.TaskName, &summary, &t.Prompt, &frequency,
		&schedTime, &schedDatetime, &weekday,
		&nextExec, &lastExec,
		&t.ExecutionCount, &t.FailCount, &lastError, &t.IsActive,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Frequency = schedule.Frequency(frequency)
	t.NotificationSummary = summary.String
	if schedTime.Valid {
		v := schedTime.String
		t.ScheduledTime = &v
	}
	if schedDatetime.Valid {
		v := schedDatetime.Time.UTC()
		t.ScheduledDatetime = &v
	}
	if weekday.Valid {
		v := int(weekday.Int64)
		t.Weekday = &v
	}
	if nextExec.Valid {
		v := nextExec.Time.UTC()
		t.NextExecutionAt = &v
	}
	if lastExec.Valid {
		v := lastExec.Time.UTC()
		t.LastExecutedAt = &v
	}
	if lastError.Valid {
		v := lastError.String
		t.LastError = &v
	}
	return &t, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
