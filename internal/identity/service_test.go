package identity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type fakeRepo struct {
	users map[string]*User
}

func newFakeRepo(users ...*User) *fakeRepo {
	r := &fakeRepo{users: map[string]*User{}}
	for _, u := range users {
		r.users[u.Username] = u
	}
	return r
}

func (r *fakeRepo) CreateUser(ctx context.Context, user *User) error {
	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return ErrUserExists
		}
	}
	copied := *user
	r.users[user.Username] = &copied
	return nil
}

func (r *fakeRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *fakeRepo) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	if u, ok := r.users[username]; ok {
		return u, nil
	}
	return nil, ErrUserNotFound
}

func (r *fakeRepo) UpdateUser(ctx context.Context, user *User) error {
	stored, err := r.GetUserByID(ctx, user.ID)
	if err != nil {
		return err
	}
	stored.Email = user.Email
	stored.FullName = user.FullName
	stored.RoleID = user.RoleID
	stored.DepartmentID = user.DepartmentID
	return nil
}

func (r *fakeRepo) SetUserActive(ctx context.Context, userID uuid.UUID, active bool) error {
	u, err := r.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	u.IsActive = active
	return nil
}

func (r *fakeRepo) AllUsers(ctx context.Context) ([]User, error) {
	out := []User{}
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out, nil
}

func (r *fakeRepo) ListUsersByRoleLevel(ctx context.Context, roleLevel int) ([]User, error) {
	out := []User{}
	for _, u := range r.users {
		if u.RoleLevel == roleLevel && u.IsActive {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *fakeRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	u, err := r.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	u.PasswordHash = passwordHash
	return nil
}

func (r *fakeRepo) ListUsers(ctx context.Context, departmentID *uuid.UUID, minRoleLevel int) ([]User, error) {
	out := []User{}
	for _, u := range r.users {
		if u.RoleLevel >= minRoleLevel {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListDepartments(ctx context.Context) ([]Department, error) { return nil, nil }
func (r *fakeRepo) DepartmentCode(ctx context.Context, id uuid.UUID) (string, error) {
	return "ENG", nil
}
func (r *fakeRepo) ListRoles(ctx context.Context) ([]Role, error) { return nil, nil }

func testUser(t *testing.T, username, password string, roleLevel int) *User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	department := uuid.New()
	return &User{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		FullName:     "Test User",
		RoleLevel:    roleLevel,
		DepartmentID: &department,
		IsActive:     true,
	}
}

func TestLoginIssuesValidToken(t *testing.T) {
	user := testUser(t, "alice", "s3cret-pass", RoleViceManager)
	service := NewService(newFakeRepo(user), "test-signing-key", time.Hour, zap.NewNop())

	result, err := service.Login(context.Background(), "alice", "s3cret-pass")
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	assert.Equal(t, user.ID, result.User.ID)

	actor, err := service.ValidateToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, actor.UserID)
	assert.Equal(t, RoleViceManager, actor.RoleLevel)
	require.NotNil(t, actor.DepartmentID)
	assert.Equal(t, *user.DepartmentID, *actor.DepartmentID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	user := testUser(t, "alice", "s3cret-pass", RoleAssistant)
	service := NewService(newFakeRepo(user), "test-signing-key", time.Hour, zap.NewNop())

	_, err := service.Login(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown usernames produce the same error as bad passwords.
	_, err = service.Login(context.Background(), "nobody", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	user := testUser(t, "alice", "s3cret-pass", RoleAssistant)
	user.IsActive = false
	service := NewService(newFakeRepo(user), "test-signing-key", time.Hour, zap.NewNop())

	_, err := service.Login(context.Background(), "alice", "s3cret-pass")
	assert.ErrorIs(t, err, ErrUserInactive)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	user := testUser(t, "alice", "s3cret-pass", RoleAssistant)
	service := NewService(newFakeRepo(user), "test-signing-key", time.Hour, zap.NewNop())
	other := NewService(newFakeRepo(user), "different-key", time.Hour, zap.NewNop())

	result, err := service.Login(context.Background(), "alice", "s3cret-pass")
	require.NoError(t, err)

	_, err = other.ValidateToken(result.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = service.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	user := testUser(t, "alice", "s3cret-pass", RoleAssistant)
	service := NewService(newFakeRepo(user), "test-signing-key", -time.Minute, zap.NewNop())

	result, err := service.Login(context.Background(), "alice", "s3cret-pass")
	require.NoError(t, err)

	validator := NewService(newFakeRepo(user), "test-signing-key", time.Hour, zap.NewNop())
	_, err = validator.ValidateToken(result.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func adminCtx() Context {
	return Context{UserID: uuid.New(), RoleLevel: RoleAdmin}
}

func TestRegisterCreatesLoginableUser(t *testing.T) {
	service := NewService(newFakeRepo(), "test-signing-key", time.Hour, zap.NewNop())
	ctx := context.Background()

	department := uuid.New()
	user, err := service.Register(ctx, adminCtx(), RegisterRequest{
		Username:     "bob",
		Email:        "bob@example.com",
		Password:     "initial-pass-1",
		FullName:     "Bob Reviewer",
		RoleID:       uuid.New(),
		DepartmentID: &department,
	})
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Username)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "initial-pass-1", user.PasswordHash)

	result, err := service.Login(ctx, "bob", "initial-pass-1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, result.User.ID)
}

func TestRegisterRequiresAdmin(t *testing.T) {
	service := NewService(newFakeRepo(), "test-signing-key", time.Hour, zap.NewNop())

	_, err := service.Register(context.Background(), Context{UserID: uuid.New(), RoleLevel: RoleManager}, RegisterRequest{
		Username: "eve", Email: "eve@example.com", Password: "long-enough-1",
		FullName: "Eve", RoleID: uuid.New(),
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRegisterRejectsDuplicatesAndWeakPasswords(t *testing.T) {
	existing := testUser(t, "alice", "s3cret-pass", RoleAssistant)
	service := NewService(newFakeRepo(existing), "test-signing-key", time.Hour, zap.NewNop())
	ctx := context.Background()

	_, err := service.Register(ctx, adminCtx(), RegisterRequest{
		Username: "alice", Email: "other@example.com", Password: "long-enough-1",
		FullName: "Second Alice", RoleID: uuid.New(),
	})
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = service.Register(ctx, adminCtx(), RegisterRequest{
		Username: "carol", Email: "carol@example.com", Password: "short",
		FullName: "Carol", RoleID: uuid.New(),
	})
	assert.Error(t, err)
}

func TestDeactivateUserBlocksLogin(t *testing.T) {
	user := testUser(t, "alice", "s3cret-pass", RoleAssistant)
	service := NewService(newFakeRepo(user), "test-signing-key", time.Hour, zap.NewNop())
	ctx := context.Background()

	err := service.DeactivateUser(ctx, Context{UserID: uuid.New(), RoleLevel: RoleViceManager}, user.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, service.DeactivateUser(ctx, adminCtx(), user.ID))
	_, err = service.Login(ctx, "alice", "s3cret-pass")
	assert.ErrorIs(t, err, ErrUserInactive)

	err = service.DeactivateUser(ctx, adminCtx(), uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateUserChangesProfile(t *testing.T) {
	user := testUser(t, "alice", "s3cret-pass", RoleAssistant)
	service := NewService(newFakeRepo(user), "test-signing-key", time.Hour, zap.NewNop())
	ctx := context.Background()

	newRole := uuid.New()
	newDept := uuid.New()
	updated, err := service.UpdateUser(ctx, adminCtx(), user.ID, UpdateUserRequest{
		Email:        "alice.new@example.com",
		FullName:     "Alice Promoted",
		RoleID:       newRole,
		DepartmentID: &newDept,
	})
	require.NoError(t, err)
	assert.Equal(t, "alice.new@example.com", updated.Email)
	assert.Equal(t, "Alice Promoted", updated.FullName)
	assert.Equal(t, newRole, updated.RoleID)

	_, err = service.UpdateUser(ctx, Context{UserID: uuid.New(), RoleLevel: RoleAssistant}, user.ID, UpdateUserRequest{
		Email: "x@example.com", FullName: "X", RoleID: uuid.New(),
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestListAllUsersRequiresAdmin(t *testing.T) {
	user := testUser(t, "alice", "s3cret-pass", RoleAssistant)
	service := NewService(newFakeRepo(user), "test-signing-key", time.Hour, zap.NewNop())
	ctx := context.Background()

	_, err := service.ListAllUsers(ctx, Context{UserID: uuid.New(), RoleLevel: RoleManager})
	assert.ErrorIs(t, err, ErrForbidden)

	users, err := service.ListAllUsers(ctx, adminCtx())
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestChangePassword(t *testing.T) {
	user := testUser(t, "alice", "old-password", RoleAssistant)
	service := NewService(newFakeRepo(user), "test-signing-key", time.Hour, zap.NewNop())
	ctx := context.Background()

	err := service.ChangePassword(ctx, user.ID, "wrong", "new-password-123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = service.ChangePassword(ctx, user.ID, "old-password", "short")
	assert.Error(t, err)

	require.NoError(t, service.ChangePassword(ctx, user.ID, "old-password", "new-password-123"))
	_, err = service.Login(ctx, "alice", "new-password-123")
	assert.NoError(t, err)
}
