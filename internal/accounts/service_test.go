package accounts

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/repo/memory"
	"github.com/geocoder89/taskhub/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeIssuer struct {
	issued []string
}

func (f *fakeIssuer) Issue(userID string) (string, time.Time, error) {
	f.issued = append(f.issued, userID)
	return "tok-" + userID, time.Unix(1_700_000_000, 0), nil
}

type fakeEvictor struct {
	forgotten []string
}

func (f *fakeEvictor) Forget(_ context.Context, userID string) {
	f.forgotten = append(f.forgotten, userID)
}

type countingHasher struct {
	PasswordHasher
	checks int
}

func (c *countingHasher) Check(hash, plain string) error {
	c.checks++
	return c.PasswordHasher.Check(hash, plain)
}

func newService(t *testing.T) (*Service, *memory.UsersRepo, *fakeEvictor) {
	t.Helper()
	users := memory.NewUsersRepo()
	ev := &fakeEvictor{}
	return NewService(users, security.NewHasher(bcrypt.MinCost), &fakeIssuer{}, ev, nil), users, ev
}

func register(t *testing.T, s *Service, username, email string) Session {
	t.Helper()
	sess, err := s.Register(context.Background(), user.RegisterRequest{
		Username: username,
		Email:    email,
		Password: "Secret123",
	})
	require.NoError(t, err)
	return sess
}

func TestRegister_NormalizesAndIssuesToken(t *testing.T) {
	s, users, _ := newService(t)

	sess := register(t, s, "  alice ", "Alice@Example.COM ")

	assert.Equal(t, "alice", sess.User.Username)
	assert.Equal(t, "alice@example.com", sess.User.Email)
	assert.Equal(t, user.RoleUser, sess.User.Role)
	assert.Equal(t, "tok-"+sess.User.ID, sess.Token)

	stored, err := users.GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "Secret123", stored.PasswordHash)
}

func TestRegister_CollectsEveryProblem(t *testing.T) {
	s, _, _ := newService(t)

	_, err := s.Register(context.Background(), user.RegisterRequest{
		Username: "a!",
		Email:    "not-an-email",
		Password: "short",
	})
	require.Error(t, err)

	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.KindValidation, ae.Kind)
	assert.Contains(t, ae.Details, "Please provide a valid email")
	assert.GreaterOrEqual(t, len(ae.Details), 4)
}

func TestRegister_RejectsOverlongEmail(t *testing.T) {
	s, users, _ := newService(t)

	long := strings.Repeat("a", 64) + "@" + strings.Repeat("b", 63) + "." + strings.Repeat("c", 63) + "." + strings.Repeat("d", 63) + ".com"
	require.Greater(t, len(long), user.EmailMaxLen)

	_, err := s.Register(context.Background(), user.RegisterRequest{
		Username: "longmail", Email: long, Password: "Secret123",
	})
	require.Error(t, err)

	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.KindValidation, ae.Kind)
	assert.Contains(t, ae.Details, "Please provide a valid email")

	_, err = users.GetByEmail(context.Background(), long)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestRegister_DuplicateEmailAndUsername(t *testing.T) {
	s, _, _ := newService(t)
	register(t, s, "alice", "alice@example.com")

	_, err := s.Register(context.Background(), user.RegisterRequest{
		Username: "alice2", Email: "ALICE@example.com", Password: "Secret123",
	})
	assert.True(t, apperr.IsKind(err, apperr.KindDuplicateKey))

	_, err = s.Register(context.Background(), user.RegisterRequest{
		Username: "alice", Email: "other@example.com", Password: "Secret123",
	})
	assert.True(t, apperr.IsKind(err, apperr.KindDuplicateKey))
}

func TestLogin(t *testing.T) {
	s, _, _ := newService(t)
	reg := register(t, s, "bob", "bob@example.com")

	sess, err := s.Login(context.Background(), user.LoginRequest{Email: " BOB@example.com", Password: "Secret123"})
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, sess.User.ID)

	_, err = s.Login(context.Background(), user.LoginRequest{Email: "bob@example.com", Password: "Wrong1234"})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthenticated))

	_, err = s.Login(context.Background(), user.LoginRequest{Email: "nobody@example.com", Password: "Secret123"})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthenticated))
	assert.Equal(t, "Invalid email or password", err.(*apperr.Error).Message)
}

func TestLogin_UnknownEmailStillComparesAHash(t *testing.T) {
	hasher := &countingHasher{PasswordHasher: security.NewHasher(bcrypt.MinCost)}
	s := NewService(memory.NewUsersRepo(), hasher, &fakeIssuer{}, nil, nil)

	for i := 0; i < 2; i++ {
		_, err := s.Login(context.Background(), user.LoginRequest{Email: "ghost@example.com", Password: "Secret123"})
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindUnauthenticated))
	}

	assert.Equal(t, 2, hasher.checks)
}

func TestUpdateProfile(t *testing.T) {
	s, _, ev := newService(t)
	alice := register(t, s, "alice", "alice@example.com")
	register(t, s, "bob", "bob@example.com")

	name := "alice_w"
	id, err := s.UpdateProfile(context.Background(), alice.User.ID, user.UpdateProfileRequest{Username: &name})
	require.NoError(t, err)
	assert.Equal(t, "alice_w", id.Username)
	assert.Equal(t, []string{alice.User.ID}, ev.forgotten)

	taken := "bob"
	_, err = s.UpdateProfile(context.Background(), alice.User.ID, user.UpdateProfileRequest{Username: &taken})
	assert.True(t, apperr.IsKind(err, apperr.KindDuplicateKey))

	bad := "x"
	_, err = s.UpdateProfile(context.Background(), alice.User.ID, user.UpdateProfileRequest{Username: &bad})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	same, err := s.UpdateProfile(context.Background(), alice.User.ID, user.UpdateProfileRequest{})
	require.NoError(t, err)
	assert.Equal(t, "alice_w", same.Username)
}

func TestChangePassword(t *testing.T) {
	s, _, ev := newService(t)
	alice := register(t, s, "alice", "alice@example.com")
	ctx := context.Background()

	err := s.ChangePassword(ctx, alice.User.ID, user.ChangePasswordRequest{CurrentPassword: "Nope1234", NewPassword: "Newpass123"})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	err = s.ChangePassword(ctx, alice.User.ID, user.ChangePasswordRequest{CurrentPassword: "Secret123", NewPassword: "weak"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	err = s.ChangePassword(ctx, alice.User.ID, user.ChangePasswordRequest{CurrentPassword: "Secret123", NewPassword: "Newpass123"})
	require.NoError(t, err)
	assert.Contains(t, ev.forgotten, alice.User.ID)

	_, err = s.Login(ctx, user.LoginRequest{Email: "alice@example.com", Password: "Secret123"})
	assert.Error(t, err)

	_, err = s.Login(ctx, user.LoginRequest{Email: "alice@example.com", Password: "Newpass123"})
	assert.NoError(t, err)
}

func TestCreateUser_AdminRole(t *testing.T) {
	s, _, _ := newService(t)

	id, err := s.CreateUser(context.Background(), user.RegisterRequest{
		Username: "admin", Email: "admin@example.com", Password: "Admin123",
	}, user.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, id.IsAdmin())
	assert.False(t, strings.Contains(id.Email, " "))
}
