package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/jackc/pgx/v5"
)

var ErrTaskNotFound = apperr.NotFound("Task not found")

const taskColumns = `id, title, description, status, priority, owner_id, created_at, updated_at`

type TasksRepo struct {
	db  DBTX
	obs Observer
}

// constructor function

func NewTasksRepo(db DBTX) *TasksRepo {
	return &TasksRepo{db: db, obs: noopObserver{}}
}

func (r *TasksRepo) WithObserver(obs Observer) *TasksRepo {
	if obs != nil {
		r.obs = obs
	}
	return r
}

func (r *TasksRepo) Create(ctx context.Context, t task.Task) (task.Task, error) {
	err := r.obs.ObserveDB("tasks.create", func() error {
		_, err := r.db.Exec(ctx,
			`INSERT INTO tasks (id, title, description, status, priority, owner_id, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			t.ID, t.Title, t.Description, string(t.Status), string(t.Priority), t.OwnerID, t.CreatedAt, t.UpdatedAt,
		)
		return err
	})

	if err != nil {
		return task.Task{}, err
	}

	t.Owner = nil
	return t, nil
}

func (r *TasksRepo) GetByID(ctx context.Context, id string) (task.Task, error) {
	if !isUUID(id) {
		return task.Task{}, ErrTaskNotFound
	}

	var t task.Task

	err := r.obs.ObserveDB("tasks.get_by_id", func() error {
		return scanTask(r.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id), &t)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return task.Task{}, ErrTaskNotFound
		}
		return task.Task{}, err
	}

	return t, nil
}

func (r *TasksRepo) List(ctx context.Context, f task.ListFilter) ([]task.Task, int, error) {
	var conds []string
	var args []interface{}

	argsPosition := 1

	// filtered conditional checks.
	if f.OwnerID != nil {
		if !isUUID(*f.OwnerID) {
			return []task.Task{}, 0, nil
		}
		conds = append(conds, fmt.Sprintf("owner_id = $%d", argsPosition))
		args = append(args, *f.OwnerID)
		argsPosition++
	}

	if f.Status != nil {
		conds = append(conds, fmt.Sprintf("status = $%d", argsPosition))
		args = append(args, string(*f.Status))
		argsPosition++
	}

	if f.Priority != nil {
		conds = append(conds, fmt.Sprintf("priority = $%d", argsPosition))
		args = append(args, string(*f.Priority))
		argsPosition++
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	total := 0

	err := r.obs.ObserveDB("tasks.count", func() error {
		return r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`+where, args...).Scan(&total)
	})
	if err != nil {
		return nil, 0, err
	}

	// stable ordering for pagination
	query := `SELECT ` + taskColumns + ` FROM tasks` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argsPosition, argsPosition+1)

	pageArgs := append(append([]interface{}{}, args...), f.Limit, f.Offset)

	output := make([]task.Task, 0, f.Limit)

	err = r.obs.ObserveDB("tasks.list", func() error {
		rows, err := r.db.Query(ctx, query, pageArgs...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var t task.Task
			if err := scanTask(rows, &t); err != nil {
				return err
			}
			output = append(output, t)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, 0, err
	}

	return output, total, nil
}

// Update overwrites only the non-nil fields in a single statement.
func (r *TasksRepo) Update(ctx context.Context, id string, in task.UpdateInput) (task.Task, error) {
	if !isUUID(id) {
		return task.Task{}, ErrTaskNotFound
	}

	var t task.Task

	err := r.obs.ObserveDB("tasks.update", func() error {
		return scanTask(r.db.QueryRow(ctx,
			`UPDATE tasks
				SET title = COALESCE($2, title),
					description = COALESCE($3, description),
					status = COALESCE($4, status),
					priority = COALESCE($5, priority),
					updated_at = NOW()
			WHERE id = $1
			RETURNING `+taskColumns,
			id,
			nullable(in.Title),
			nullable(in.Description),
			nullable(in.Status),
			nullable(in.Priority),
		), &t)
	})

	if err != nil {
		// if there are no rows matching the id
		if errors.Is(err, pgx.ErrNoRows) {
			return task.Task{}, ErrTaskNotFound
		}
		return task.Task{}, err
	}

	return t, nil
}

func (r *TasksRepo) Delete(ctx context.Context, id string) error {
	if !isUUID(id) {
		return ErrTaskNotFound
	}

	var affected int64

	err := r.obs.ObserveDB("tasks.delete", func() error {
		tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})

	if err != nil {
		return err
	}

	// if no rows were deleted as a result return a not found error
	if affected == 0 {
		return ErrTaskNotFound
	}

	return nil
}

func scanTask(row pgx.Row, t *task.Task) error {
	return row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt)
}
