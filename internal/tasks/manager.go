package tasks

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/authz"
	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/utils"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

type Store interface {
	Create(ctx context.Context, t task.Task) (task.Task, error)
	GetByID(ctx context.Context, id string) (task.Task, error)
	List(ctx context.Context, f task.ListFilter) ([]task.Task, int, error)
	Update(ctx context.Context, id string, in task.UpdateInput) (task.Task, error)
	Delete(ctx context.Context, id string) error
}

// OwnerDirectory resolves owner ids to display summaries for admin views.
type OwnerDirectory interface {
	OwnerSummaries(ctx context.Context, ids []string) (map[string]task.OwnerSummary, error)
}

// ListQuery is a listing request; zero Page or Limit means the default and Limit is capped at MaxLimit.
type ListQuery struct {
	Status   *task.Status
	Priority *task.Priority
	Page     int
	Limit    int
}

// ParseListQuery reads status, priority, page and limit from query parameters.
func ParseListQuery(v url.Values) (ListQuery, error) {
	var (
		q        ListQuery
		problems []string
	)

	if s := v.Get("status"); s != "" {
		st := task.Status(s)
		q.Status = &st
	}
	if p := v.Get("priority"); p != "" {
		pr := task.Priority(p)
		q.Priority = &pr
	}

	page, ok := utils.ParseOptionalInt(v.Get("page"), 1)
	if !ok || page < 1 {
		problems = append(problems, "Page must be a positive integer")
	}
	limit, ok := utils.ParseOptionalInt(v.Get("limit"), DefaultLimit)
	if !ok || limit < 1 {
		problems = append(problems, "Limit must be a positive integer")
	}

	if len(problems) > 0 {
		return ListQuery{}, apperr.Validation("Validation failed", problems...)
	}

	q.Page, q.Limit = page, limit

	return q, nil
}

func (q ListQuery) validate() []string {
	var problems []string

	if q.Status != nil && !q.Status.Valid() {
		problems = append(problems, "Status must be pending, in_progress, or completed")
	}
	if q.Priority != nil && !q.Priority.Valid() {
		problems = append(problems, "Priority must be low, medium, or high")
	}
	if q.Page < 0 {
		problems = append(problems, "Page must be a positive integer")
	}
	if q.Limit < 0 {
		problems = append(problems, "Limit must be a positive integer")
	}

	return problems
}

type Manager struct {
	store  Store
	owners OwnerDirectory
	log    *slog.Logger
}

func NewManager(store Store, owners OwnerDirectory, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{store: store, owners: owners, log: log}
}

// Create stores a task owned by ownerID; the owner never comes from client input.
func (m *Manager) Create(ctx context.Context, ownerID string, in task.CreateInput) (task.Task, error) {
	in.Normalize()

	if problems := in.Validate(); len(problems) > 0 {
		return task.Task{}, apperr.Validation("Validation failed", problems...)
	}

	t, err := m.store.Create(ctx, task.NewFromCreateInput(ownerID, in))
	if err != nil {
		return task.Task{}, err
	}

	m.log.InfoContext(ctx, "task_created", "task_id", t.ID, "owner_id", ownerID)

	return t, nil
}

// List returns one page of tasks. A nil scope lists every owner's tasks with the owner attached.
func (m *Manager) List(ctx context.Context, scopeOwnerID *string, q ListQuery) (task.Page, error) {
	if problems := q.validate(); len(problems) > 0 {
		return task.Page{}, apperr.Validation("Validation failed", problems...)
	}

	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}

	items, total, err := m.store.List(ctx, task.ListFilter{
		OwnerID:  scopeOwnerID,
		Status:   q.Status,
		Priority: q.Priority,
		Limit:    q.Limit,
		Offset:   utils.Offset(q.Page, q.Limit),
	})
	if err != nil {
		return task.Page{}, err
	}

	if items == nil {
		items = []task.Task{}
	}

	if scopeOwnerID == nil {
		if err := m.attachOwners(ctx, items); err != nil {
			return task.Page{}, err
		}
	}

	return task.Page{
		Tasks: items,
		Pagination: task.Pagination{
			CurrentPage:  q.Page,
			TotalPages:   utils.TotalPages(total, q.Limit),
			TotalTasks:   total,
			TasksPerPage: q.Limit,
		},
	}, nil
}

func (m *Manager) GetByID(ctx context.Context, id string, identity user.Identity) (task.Task, error) {
	return m.authorized(ctx, id, identity, authz.ActionRead)
}

func (m *Manager) Update(ctx context.Context, id string, identity user.Identity, in task.UpdateInput) (task.Task, error) {
	in.Normalize()

	if problems := in.Validate(); len(problems) > 0 {
		return task.Task{}, apperr.Validation("Validation failed", problems...)
	}

	current, err := m.authorized(ctx, id, identity, authz.ActionUpdate)
	if err != nil {
		return task.Task{}, err
	}

	if in.Empty() {
		return current, nil
	}

	return m.store.Update(ctx, id, in)
}

func (m *Manager) Delete(ctx context.Context, id string, identity user.Identity) error {
	_, err := m.remove(ctx, id, identity)
	return err
}

// UpdateAny is the admin update; the result carries its owner.
func (m *Manager) UpdateAny(ctx context.Context, id string, admin user.Identity, in task.UpdateInput) (task.Task, error) {
	if err := authz.RequireRole(admin, user.RoleAdmin); err != nil {
		return task.Task{}, err
	}

	t, err := m.Update(ctx, id, admin, in)
	if err != nil {
		return task.Task{}, err
	}

	return m.withOwner(ctx, t)
}

// DeleteAny is the admin delete; it returns the removed task with its owner.
func (m *Manager) DeleteAny(ctx context.Context, id string, admin user.Identity) (task.Task, error) {
	if err := authz.RequireRole(admin, user.RoleAdmin); err != nil {
		return task.Task{}, err
	}

	t, err := m.remove(ctx, id, admin)
	if err != nil {
		return task.Task{}, err
	}

	return m.withOwner(ctx, t)
}

func (m *Manager) remove(ctx context.Context, id string, identity user.Identity) (task.Task, error) {
	t, err := m.authorized(ctx, id, identity, authz.ActionDelete)
	if err != nil {
		return task.Task{}, err
	}

	if err := m.store.Delete(ctx, id); err != nil {
		return task.Task{}, err
	}

	m.log.InfoContext(ctx, "task_deleted", "task_id", id, "owner_id", t.OwnerID)

	return t, nil
}

// authorized loads the task and applies the ownership policy. Absent tasks are NotFound before any policy check.
func (m *Manager) authorized(ctx context.Context, id string, identity user.Identity, action authz.Action) (task.Task, error) {
	t, err := m.store.GetByID(ctx, id)
	if err != nil {
		return task.Task{}, err
	}

	if err := authz.CanAccessTask(identity, t, action); err != nil {
		return task.Task{}, err
	}

	return t, nil
}

func (m *Manager) withOwner(ctx context.Context, t task.Task) (task.Task, error) {
	items := []task.Task{t}
	if err := m.attachOwners(ctx, items); err != nil {
		return task.Task{}, err
	}
	return items[0], nil
}

func (m *Manager) attachOwners(ctx context.Context, items []task.Task) error {
	if m.owners == nil || len(items) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, t := range items {
		if _, ok := seen[t.OwnerID]; ok {
			continue
		}
		seen[t.OwnerID] = struct{}{}
		ids = append(ids, t.OwnerID)
	}

	owners, err := m.owners.OwnerSummaries(ctx, ids)
	if err != nil {
		return err
	}

	for i := range items {
		if o, ok := owners[items[i].OwnerID]; ok {
			items[i].Owner = &o
		}
	}

	return nil
}
