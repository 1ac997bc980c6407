package authz

import (
	"strings"

	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/domain/user"
)

type Action string

const (
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

func (a Action) verb() string {
	switch a {
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	default:
		return "view"
	}
}

// CanAccessTask allows admins everything and everyone else only their own tasks.
func CanAccessTask(identity user.Identity, t task.Task, action Action) error {
	if identity.IsAdmin() {
		return nil
	}

	if identity.ID != "" && t.OwnerID == identity.ID {
		return nil
	}

	return apperr.Forbidden("Access denied. You can only " + action.verb() + " your own tasks.")
}

// RequireRole fails with Forbidden naming the allowed roles.
func RequireRole(identity user.Identity, allowed ...user.Role) error {
	for _, r := range allowed {
		if identity.Role == r {
			return nil
		}
	}

	names := make([]string, 0, len(allowed))
	for _, r := range allowed {
		names = append(names, string(r))
	}

	return apperr.Forbidden("Access denied. Required role: " + strings.Join(names, " or "))
}
