package accounts

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/security"
	"github.com/go-playground/validator/v10"
)

type UserStore interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.Identity, error)
	UpdateUsername(ctx context.Context, id, username string) (user.Identity, error)
	GetPasswordHash(ctx context.Context, id string) (string, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Check(hash, plain string) error
}

type TokenIssuer interface {
	Issue(userID string) (string, time.Time, error)
}

// IdentityEvictor drops cached identities after a user record changes.
type IdentityEvictor interface {
	Forget(ctx context.Context, userID string)
}

// Session is the result of a successful register or login.
type Session struct {
	User      user.Identity
	Token     string
	ExpiresAt time.Time
}

var errInvalidCredentials = apperr.Unauthenticated("Invalid email or password", nil)

type Service struct {
	users    UserStore
	hasher   PasswordHasher
	tokens   TokenIssuer
	evictor  IdentityEvictor
	validate *validator.Validate
	log      *slog.Logger

	// decoy is checked for unknown emails so login time does not reveal which addresses exist.
	decoyOnce sync.Once
	decoy     string
}

func NewService(users UserStore, hasher PasswordHasher, tokens TokenIssuer, evictor IdentityEvictor, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		evictor:  evictor,
		validate: validator.New(),
		log:      log,
	}
}

// CreateUser validates and stores a new account with the given role.
func (s *Service) CreateUser(ctx context.Context, req user.RegisterRequest, role user.Role) (user.Identity, error) {
	req.Username = user.NormalizeUsername(req.Username)
	req.Email = user.NormalizeEmail(req.Email)

	problems := user.ValidateUsername(req.Username)
	if err := s.validate.Var(req.Email, user.EmailRule); err != nil {
		problems = append(problems, "Please provide a valid email")
	}
	problems = append(problems, user.ValidatePassword(req.Password)...)

	if len(problems) > 0 {
		return user.Identity{}, apperr.Validation("Validation failed", problems...)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return user.Identity{}, apperr.Internal("Could not create user", err)
	}

	u, err := s.users.Create(ctx, user.New(req.Username, req.Email, hash, role))
	if err != nil {
		return user.Identity{}, err
	}

	s.log.InfoContext(ctx, "user_registered", "user_id", u.ID, "role", u.Role)

	return u.Identity(), nil
}

func (s *Service) Register(ctx context.Context, req user.RegisterRequest) (Session, error) {
	id, err := s.CreateUser(ctx, req, user.RoleUser)
	if err != nil {
		return Session{}, err
	}

	return s.issue(id)
}

func (s *Service) Login(ctx context.Context, req user.LoginRequest) (Session, error) {
	found, err := s.users.GetByEmail(ctx, user.NormalizeEmail(req.Email))
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			s.checkDecoy(req.Password)
			return Session{}, errInvalidCredentials
		}
		return Session{}, err
	}

	err = s.hasher.Check(found.PasswordHash, req.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			s.log.WarnContext(ctx, "login_failed", "user_id", found.ID)
			return Session{}, errInvalidCredentials
		}
		return Session{}, apperr.Internal("Could not verify credentials", err)
	}

	return s.issue(found.Identity())
}

// FindByEmail looks an account up by address without exposing its password hash.
func (s *Service) FindByEmail(ctx context.Context, email string) (user.Identity, error) {
	u, err := s.users.GetByEmail(ctx, user.NormalizeEmail(email))
	if err != nil {
		return user.Identity{}, err
	}
	return u.Identity(), nil
}

func (s *Service) Me(ctx context.Context, userID string) (user.Identity, error) {
	return s.users.GetByID(ctx, userID)
}

// UpdateProfile changes the username when one is supplied; other fields are immutable here.
func (s *Service) UpdateProfile(ctx context.Context, userID string, req user.UpdateProfileRequest) (user.Identity, error) {
	if req.Username == nil {
		return s.users.GetByID(ctx, userID)
	}

	username := user.NormalizeUsername(*req.Username)

	if problems := user.ValidateUsername(username); len(problems) > 0 {
		return user.Identity{}, apperr.Validation("Validation failed", problems...)
	}

	id, err := s.users.UpdateUsername(ctx, userID, username)
	if err != nil {
		return user.Identity{}, err
	}

	s.forget(ctx, userID)

	return id, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID string, req user.ChangePasswordRequest) error {
	if problems := user.ValidatePassword(req.NewPassword); len(problems) > 0 {
		return apperr.Validation("Validation failed", problems...)
	}

	hash, err := s.users.GetPasswordHash(ctx, userID)
	if err != nil {
		return err
	}

	err = s.hasher.Check(hash, req.CurrentPassword)
	if err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			return apperr.Validation("Validation failed", "Current password is incorrect")
		}
		return apperr.Internal("Could not verify credentials", err)
	}

	newHash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return apperr.Internal("Could not update password", err)
	}

	if err := s.users.UpdatePasswordHash(ctx, userID, newHash); err != nil {
		return err
	}

	s.forget(ctx, userID)

	return nil
}

func (s *Service) checkDecoy(plain string) {
	s.decoyOnce.Do(func() {
		hash, err := s.hasher.Hash("decoy-password-for-unknown-accounts")
		if err != nil {
			s.log.Error("login_decoy_hash_failed", "err", err)
			return
		}
		s.decoy = hash
	})

	if s.decoy != "" {
		_ = s.hasher.Check(s.decoy, plain)
	}
}

func (s *Service) issue(id user.Identity) (Session, error) {
	token, expiresAt, err := s.tokens.Issue(id.ID)
	if err != nil {
		return Session{}, apperr.Internal("Could not generate session token", err)
	}

	return Session{User: id, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *Service) forget(ctx context.Context, userID string) {
	if s.evictor != nil {
		s.evictor.Forget(ctx, userID)
	}
}
