package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/jackc/pgx/v5"
)

var (
	ErrUserNotFound        = apperr.NotFound("User not found")
	ErrEmailAlreadyUsed    = apperr.DuplicateKey("Email already registered")
	ErrUsernameAlreadyUsed = apperr.DuplicateKey("Username already taken")
)

const (
	usersEmailKey    = "users_email_key"
	usersUsernameKey = "users_username_key"
)

type UsersRepo struct {
	db  DBTX
	obs Observer
}

func NewUsersRepo(db DBTX) *UsersRepo {
	return &UsersRepo{db: db, obs: noopObserver{}}
}

func (r *UsersRepo) WithObserver(obs Observer) *UsersRepo {
	if obs != nil {
		r.obs = obs
	}
	return r
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	err := r.obs.ObserveDB("users.create", func() error {
		_, err := r.db.Exec(ctx,
			`INSERT INTO users (id, username, email, password_hash, role, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			u.ID, u.Username, u.Email, u.PasswordHash, string(u.Role), u.CreatedAt, u.UpdatedAt,
		)
		return err
	})

	if err != nil {
		if constraint, ok := uniqueConstraint(err); ok {
			switch constraint {
			case usersEmailKey:
				return user.User{}, ErrEmailAlreadyUsed
			case usersUsernameKey:
				return user.User{}, ErrUsernameAlreadyUsed
			}
			return user.User{}, apperr.DuplicateKey("User already exists")
		}
		return user.User{}, err
	}

	return u, nil
}

// GetByEmail loads the full record including the password hash, for credential checks only.
func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.obs.ObserveDB("users.get_by_email", func() error {
		return r.db.QueryRow(ctx,
			`SELECT id, username, email, password_hash, role, created_at, updated_at
			FROM users
			WHERE email = $1`,
			email,
		).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, ErrUserNotFound
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.Identity, error) {
	if !isUUID(id) {
		return user.Identity{}, ErrUserNotFound
	}

	return r.getIdentity(ctx, "users.get_by_id", `WHERE id = $1`, id)
}

func (r *UsersRepo) GetByUsername(ctx context.Context, username string) (user.Identity, error) {
	return r.getIdentity(ctx, "users.get_by_username", `WHERE username = $1`, username)
}

func (r *UsersRepo) getIdentity(ctx context.Context, op, where string, arg any) (user.Identity, error) {
	var id user.Identity

	err := r.obs.ObserveDB(op, func() error {
		return r.db.QueryRow(ctx,
			`SELECT id, username, email, role, created_at FROM users `+where,
			arg,
		).Scan(&id.ID, &id.Username, &id.Email, &id.Role, &id.CreatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.Identity{}, ErrUserNotFound
		}
		return user.Identity{}, err
	}

	return id, nil
}

func (r *UsersRepo) GetPasswordHash(ctx context.Context, id string) (string, error) {
	if !isUUID(id) {
		return "", ErrUserNotFound
	}

	var hash string

	err := r.obs.ObserveDB("users.get_password_hash", func() error {
		return r.db.QueryRow(ctx, `SELECT password_hash FROM users WHERE id = $1`, id).Scan(&hash)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", err
	}

	return hash, nil
}

func (r *UsersRepo) UpdateUsername(ctx context.Context, id, username string) (user.Identity, error) {
	if !isUUID(id) {
		return user.Identity{}, ErrUserNotFound
	}

	var out user.Identity

	err := r.obs.ObserveDB("users.update_username", func() error {
		return r.db.QueryRow(ctx,
			`UPDATE users
				SET username = $2,
					updated_at = CASE WHEN username = $2 THEN updated_at ELSE NOW() END
			WHERE id = $1
			RETURNING id, username, email, role, created_at`,
			id, username,
		).Scan(&out.ID, &out.Username, &out.Email, &out.Role, &out.CreatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.Identity{}, ErrUserNotFound
		}
		if _, ok := uniqueConstraint(err); ok {
			return user.Identity{}, ErrUsernameAlreadyUsed
		}
		return user.Identity{}, err
	}

	return out, nil
}

func (r *UsersRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	if !isUUID(id) {
		return ErrUserNotFound
	}

	return r.obs.ObserveDB("users.update_password", func() error {
		tag, err := r.db.Exec(ctx,
			`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
			id, hash, time.Now().UTC(),
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrUserNotFound
		}
		return nil
	})
}

// OwnerSummaries resolves display fields for task owners in one round trip.
func (r *UsersRepo) OwnerSummaries(ctx context.Context, ids []string) (map[string]task.OwnerSummary, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if isUUID(id) {
			valid = append(valid, id)
		}
	}

	out := make(map[string]task.OwnerSummary, len(valid))
	if len(valid) == 0 {
		return out, nil
	}

	err := r.obs.ObserveDB("users.owner_summaries", func() error {
		rows, err := r.db.Query(ctx, `SELECT id, username, email FROM users WHERE id = ANY($1)`, valid)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var o task.OwnerSummary
			if err := rows.Scan(&o.ID, &o.Username, &o.Email); err != nil {
				return err
			}
			out[o.ID] = o
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}
