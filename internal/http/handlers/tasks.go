package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/taskhub/internal/config"
	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/http/middlewares"
	"github.com/geocoder89/taskhub/internal/tasks"
	"github.com/gin-gonic/gin"
)

type TaskManager interface {
	Create(ctx context.Context, ownerID string, in task.CreateInput) (task.Task, error)
	List(ctx context.Context, scopeOwnerID *string, q tasks.ListQuery) (task.Page, error)
	GetByID(ctx context.Context, id string, identity user.Identity) (task.Task, error)
	Update(ctx context.Context, id string, identity user.Identity, in task.UpdateInput) (task.Task, error)
	Delete(ctx context.Context, id string, identity user.Identity) error
	UpdateAny(ctx context.Context, id string, admin user.Identity, in task.UpdateInput) (task.Task, error)
	DeleteAny(ctx context.Context, id string, admin user.Identity) (task.Task, error)
}

type TasksHandler struct {
	tasks   TaskManager
	timeout time.Duration
}

func NewTasksHandler(tasks TaskManager, timeout time.Duration) *TasksHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TasksHandler{tasks: tasks, timeout: timeout}
}

func (h *TasksHandler) CreateTask(ctx *gin.Context) {
	caller, ok := identity(ctx)
	if !ok {
		return
	}

	var in task.CreateInput

	if !BindJSON(ctx, &in) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	created, err := h.tasks.Create(cctx, caller.ID, in)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	RespondOK(ctx, http.StatusCreated, "Task created successfully", gin.H{"task": created})
}

func (h *TasksHandler) ListTasks(ctx *gin.Context) {
	caller, ok := identity(ctx)
	if !ok {
		return
	}

	h.list(ctx, &caller.ID, "Tasks retrieved successfully")
}

func (h *TasksHandler) GetTaskByID(ctx *gin.Context) {
	caller, ok := identity(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	t, err := h.tasks.GetByID(cctx, ctx.Param("id"), caller)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	RespondOKWithETag(ctx, "Task retrieved successfully", gin.H{"task": t})
}

func (h *TasksHandler) UpdateTask(ctx *gin.Context) {
	caller, ok := identity(ctx)
	if !ok {
		return
	}

	var in task.UpdateInput

	if !BindJSON(ctx, &in) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	updated, err := h.tasks.Update(cctx, ctx.Param("id"), caller, in)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	RespondOK(ctx, http.StatusOK, "Task updated successfully", gin.H{"task": updated})
}

func (h *TasksHandler) DeleteTask(ctx *gin.Context) {
	caller, ok := identity(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	if err := h.tasks.Delete(cctx, ctx.Param("id"), caller); err != nil {
		RespondErr(ctx, err)
		return
	}

	RespondOK(ctx, http.StatusOK, "Task deleted successfully", nil)
}

func (h *TasksHandler) list(ctx *gin.Context, scope *string, message string) {
	q, err := tasks.ParseListQuery(ctx.Request.URL.Query())
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	page, err := h.tasks.List(cctx, scope, q)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	RespondOKWithETag(ctx, message, page)
}

// identity answers 401 itself when no caller is attached.
func identity(ctx *gin.Context) (user.Identity, bool) {
	id, ok := middlewares.IdentityFromContext(ctx)
	if !ok {
		RespondError(ctx, http.StatusUnauthorized, "Not authenticated", nil)
	}
	return id, ok
}
