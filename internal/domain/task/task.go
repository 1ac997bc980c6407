package task

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

const (
	TitleMaxLen       = 200
	DescriptionMaxLen = 1000
)

// OwnerSummary is the denormalized owner shown in admin views.
type OwnerSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type Task struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      Status        `json:"status"`
	Priority    Priority      `json:"priority"`
	OwnerID     string        `json:"ownerId"`
	Owner       *OwnerSummary `json:"owner,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// CreateInput is the client payload for a new task. Owner is never taken from it.
type CreateInput struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    *Priority `json:"priority"`
	Status      *Status   `json:"status"`
}

// UpdateInput is a partial update: nil fields are left untouched.
type UpdateInput struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Priority    *Priority `json:"priority"`
	Status      *Status   `json:"status"`
}

func (in UpdateInput) Empty() bool {
	return in.Title == nil && in.Description == nil && in.Priority == nil && in.Status == nil
}

// with pointers if optional, it will be nil
type ListFilter struct {
	OwnerID  *string
	Status   *Status
	Priority *Priority
	Limit    int
	Offset   int
}

type Pagination struct {
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	TotalTasks   int `json:"totalTasks"`
	TasksPerPage int `json:"tasksPerPage"`
}

type Page struct {
	Tasks      []Task     `json:"tasks"`
	Pagination Pagination `json:"pagination"`
}

// Normalize trims text fields in place.
func (in *CreateInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
}

func (in *UpdateInput) Normalize() {
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		in.Title = &t
	}
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		in.Description = &d
	}
}

// Validate returns every constraint the (normalized) input breaks.
func (in CreateInput) Validate() []string {
	var problems []string

	if in.Title == "" {
		problems = append(problems, "Task title is required")
	} else if utf8.RuneCountInString(in.Title) > TitleMaxLen {
		problems = append(problems, "Title cannot exceed 200 characters")
	}

	problems = append(problems, validateCommon(&in.Description, in.Priority, in.Status)...)

	return problems
}

func (in UpdateInput) Validate() []string {
	var problems []string

	if in.Title != nil {
		if *in.Title == "" {
			problems = append(problems, "Task title cannot be empty")
		} else if utf8.RuneCountInString(*in.Title) > TitleMaxLen {
			problems = append(problems, "Title cannot exceed 200 characters")
		}
	}

	problems = append(problems, validateCommon(in.Description, in.Priority, in.Status)...)

	return problems
}

func validateCommon(description *string, priority *Priority, status *Status) []string {
	var problems []string

	if description != nil && utf8.RuneCountInString(*description) > DescriptionMaxLen {
		problems = append(problems, "Description cannot exceed 1000 characters")
	}
	if priority != nil && !priority.Valid() {
		problems = append(problems, "Priority must be low, medium, or high")
	}
	if status != nil && !status.Valid() {
		problems = append(problems, "Status must be pending, in_progress, or completed")
	}

	return problems
}

// NewFromCreateInput builds a task owned by ownerID, applying enum defaults.
func NewFromCreateInput(ownerID string, in CreateInput) Task {
	now := time.Now().UTC()

	status := StatusPending
	if in.Status != nil {
		status = *in.Status
	}

	priority := PriorityMedium
	if in.Priority != nil {
		priority = *in.Priority
	}

	return Task{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Status:      status,
		Priority:    priority,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Apply overwrites only the supplied fields.
func (t Task) Apply(in UpdateInput) Task {
	if in.Title != nil {
		t.Title = *in.Title
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.Priority != nil {
		t.Priority = *in.Priority
	}
	if in.Status != nil {
		t.Status = *in.Status
	}
	return t
}
