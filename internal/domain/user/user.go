package user

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Identity is the authenticated caller: a user record without credentials.
type Identity struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

func (u User) Identity() Identity {
	return Identity{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// RegisterRequest is validated by the accounts service so every problem is reported at once.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=254" msg:"Please provide a valid email"`
	Password string `json:"password" binding:"required" msg:"Password is required"`
}

type UpdateProfileRequest struct {
	Username *string `json:"username"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required" msg:"Current password is required"`
	NewPassword     string `json:"newPassword" binding:"required" msg:"New password is required"`
}

const (
	UsernameMinLen = 3
	UsernameMaxLen = 50
	PasswordMinLen = 6
	EmailMaxLen    = 254
	// bcrypt ignores everything past 72 bytes
	PasswordMaxBytes = 72
)

// EmailRule is the validator rule applied to addresses; the users.email column is VARCHAR(255).
var EmailRule = "required,email,max=" + strconv.Itoa(EmailMaxLen)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// NormalizeEmail trims and lower-cases an address so uniqueness checks compare stored values.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func NormalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

// ValidateUsername returns every rule the username breaks.
func ValidateUsername(username string) []string {
	var problems []string

	n := utf8.RuneCountInString(username)
	if n < UsernameMinLen || n > UsernameMaxLen {
		problems = append(problems, "Username must be between 3 and 50 characters")
	}
	if !usernamePattern.MatchString(username) {
		problems = append(problems, "Username can only contain letters, numbers, and underscores")
	}

	return problems
}

func ValidatePassword(password string) []string {
	var problems []string

	if len(password) < PasswordMinLen {
		problems = append(problems, "Password must be at least 6 characters")
	}
	if len(password) > PasswordMaxBytes {
		problems = append(problems, "Password must be at most 72 bytes")
	}

	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		problems = append(problems, "Password must contain at least one uppercase letter, one lowercase letter, and one number")
	}

	return problems
}

// New builds a user record ready for the credential store. The hash must already be computed.
func New(username, email, passwordHash string, role Role) User {
	now := time.Now().UTC()

	if !role.Valid() {
		role = RoleUser
	}

	return User{
		ID:           uuid.NewString(),
		Username:     NormalizeUsername(username),
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
