package handlers

import (
	"net/http"

	"github.com/geocoder89/taskhub/internal/config"
	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/gin-gonic/gin"
)

// ListAllTasks lists every owner's tasks with the owner attached. Routed behind the admin role.
func (h *TasksHandler) ListAllTasks(ctx *gin.Context) {
	if _, ok := identity(ctx); !ok {
		return
	}

	h.list(ctx, nil, "All tasks retrieved successfully")
}

func (h *TasksHandler) AdminUpdateTask(ctx *gin.Context) {
	admin, ok := identity(ctx)
	if !ok {
		return
	}

	var in task.UpdateInput

	if !BindJSON(ctx, &in) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	updated, err := h.tasks.UpdateAny(cctx, ctx.Param("id"), admin, in)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	RespondOK(ctx, http.StatusOK, "Task updated successfully"+ownerSuffix(updated), gin.H{"task": updated})
}

func (h *TasksHandler) AdminDeleteTask(ctx *gin.Context) {
	admin, ok := identity(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	deleted, err := h.tasks.DeleteAny(cctx, ctx.Param("id"), admin)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	RespondOK(ctx, http.StatusOK, "Task deleted successfully"+ownerSuffix(deleted), nil)
}

func ownerSuffix(t task.Task) string {
	if t.Owner == nil || t.Owner.Username == "" {
		return ""
	}
	return " (Owner: " + t.Owner.Username + ")"
}
