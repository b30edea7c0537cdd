package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/nodetasks/pkg/tasks"
)

const taskColumns = `id, type, node_id, date_time, priority, execute_date, execution_count, skip_count, additional_data`

// TaskStore implements tasks.Store on a PostgreSQL table created by Migrate.
type TaskStore struct {
	pool  *pgxpool.Pool
	table string
	now   func() time.Time
}

// TaskStoreOption configures a TaskStore
type TaskStoreOption func(*TaskStore)

// WithTaskTable sets the table name. Defaults to "tasks".
func WithTaskTable(name string) TaskStoreOption {
	return func(s *TaskStore) {
		if name != "" {
			s.table = name
		}
	}
}

// WithTaskStoreClock overrides the time source used for the due filter.
func WithTaskStoreClock(now func() time.Time) TaskStoreOption {
	return func(s *TaskStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTaskStore creates a task store on pool.
func NewTaskStore(pool *pgxpool.Pool, opts ...TaskStoreOption) (*TaskStore, error) {
	if pool == nil {
		return nil, ErrPoolNil
	}
	s := &TaskStore{pool: pool, table: "tasks", now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.table = pgx.Identifier{s.table}.Sanitize()
	return s, nil
}

func (s *TaskStore) ReadTasks(ctx context.Context) ([]*tasks.Task, error) {
	q := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE execute_date IS NULL OR execute_date <= $1
	`, taskColumns, s.table)
	return s.query(ctx, q, s.now().UTC())
}

func (s *TaskStore) ReadTasksToExecute(ctx context.Context) ([]*tasks.Task, error) {
	q := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE execute_date IS NULL OR execute_date <= $1
		ORDER BY priority ASC, execute_date ASC NULLS FIRST, date_time ASC
		LIMIT $2
	`, taskColumns, s.table)
	return s.query(ctx, q, s.now().UTC(), tasks.BatchSize)
}

func (s *TaskStore) query(ctx context.Context, q string, args ...any) ([]*tasks.Task, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query due tasks: %w", err)
	}
	defer rows.Close()

	var out []*tasks.Task
	for rows.Next() {
		var (
			t    tasks.Task
			data []byte
		)
		if err := rows.Scan(
			&t.ID,
			&t.Type,
			&t.NodeID,
			&t.DateTime,
			&t.Priority,
			&t.ExecuteDate,
			&t.ExecutionCount,
			&t.SkipCount,
			&data,
		); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &t.AdditionalData); err != nil {
				return nil, fmt.Errorf("decode additional data of task %s: %w", t.ID, err)
			}
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *TaskStore) CountTasks(ctx context.Context) (int64, error) {
	q := fmt.Sprintf(`SELECT count(*) FROM %s WHERE execute_date IS NULL OR execute_date <= $1`, s.table)

	var n int64
	if err := s.pool.QueryRow(ctx, q, s.now().UTC()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count due tasks: %w", err)
	}
	return n, nil
}

func (s *TaskStore) CreateTask(ctx context.Context, task *tasks.Task) error {
	return s.CreateTasks(ctx, []*tasks.Task{task})
}

// CreateTasks inserts the batch in one transaction.
func (s *TaskStore) CreateTasks(ctx context.Context, batch []*tasks.Task) error {
	if len(batch) == 0 {
		return nil
	}

	q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, s.table, taskColumns)

	b := &pgx.Batch{}
	for _, t := range batch {
		if t == nil {
			return tasks.ErrTaskNil
		}
		data, err := encodeData(t.AdditionalData)
		if err != nil {
			return err
		}
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		b.Queue(q, t.ID, t.Type, t.NodeID, t.DateTime.UTC(), t.Priority, t.ExecuteDate, t.ExecutionCount, t.SkipCount, data)
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, b).Close()
	})
	if err != nil {
		return fmt.Errorf("insert %d tasks: %w", len(batch), err)
	}
	return nil
}

// UpdateTask rewrites the scheduling fields of an existing task.
func (s *TaskStore) UpdateTask(ctx context.Context, task *tasks.Task) error {
	if task == nil {
		return tasks.ErrTaskNil
	}
	if task.ID == "" {
		return tasks.ErrTaskIDEmpty
	}

	data, err := encodeData(task.AdditionalData)
	if err != nil {
		return err
	}

	q := fmt.Sprintf(`
		UPDATE %s
		SET priority = $2, execute_date = $3, execution_count = $4, skip_count = $5, additional_data = $6
		WHERE id = $1
	`, s.table)

	tag, err := s.pool.Exec(ctx, q, task.ID, task.Priority, task.ExecuteDate, task.ExecutionCount, task.SkipCount, data)
	if err != nil {
		return fmt.Errorf("update task %s: %w", task.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", tasks.ErrTaskNotFound, task.ID)
	}
	return nil
}

func (s *TaskStore) RemoveTask(ctx context.Context, task *tasks.Task) error {
	if task == nil {
		return nil
	}
	return s.RemoveTaskByID(ctx, task.ID)
}

// RemoveTaskByID deletes the task. A missing row is not an error.
func (s *TaskStore) RemoveTaskByID(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table), id); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

func encodeData(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode additional data: %w", err)
	}
	return data, nil
}

var _ tasks.Store = (*TaskStore)(nil)
