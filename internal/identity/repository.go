package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("username or email already taken")
)

// Repository resolves users, roles and departments. Users are always loaded
// with their role level joined in so permission checks never need a second
// query.
type Repository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
	SetUserActive(ctx context.Context, userID uuid.UUID, active bool) error
	AllUsers(ctx context.Context) ([]User, error)
	ListUsers(ctx context.Context, departmentID *uuid.UUID, minRoleLevel int) ([]User, error)
	ListUsersByRoleLevel(ctx context.Context, roleLevel int) ([]User, error)

	ListDepartments(ctx context.Context) ([]Department, error)
	DepartmentCode(ctx context.Context, id uuid.UUID) (string, error)
	ListRoles(ctx context.Context) ([]Role, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

const userColumns = `u.id, u.username, u.email, u.password_hash, u.full_name,
	u.role_id, r.role_level, u.department_id, u.is_active, u.created_at, u.updated_at`

func (r *postgresRepository) CreateUser(ctx context.Context, user *User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, full_name, role_id, department_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.FullName,
		user.RoleID, user.DepartmentID, user.IsActive, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrUserExists, user.Username)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var user User
	err := r.db.GetContext(ctx, &user, `
		SELECT `+userColumns+`
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

func (r *postgresRepository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := r.db.GetContext(ctx, &user, `
		SELECT `+userColumns+`
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.username = $1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

func (r *postgresRepository) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`,
		passwordHash, userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return nil
}

func (r *postgresRepository) UpdateUser(ctx context.Context, user *User) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET email = $1, full_name = $2, role_id = $3, department_id = $4, updated_at = NOW()
		WHERE id = $5`,
		user.Email, user.FullName, user.RoleID, user.DepartmentID, user.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrUserExists, user.Email)
		}
		return fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrUserNotFound, user.ID)
	}
	return nil
}

func (r *postgresRepository) SetUserActive(ctx context.Context, userID uuid.UUID, active bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET is_active = $1, updated_at = NOW() WHERE id = $2`,
		active, userID)
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return nil
}

// AllUsers returns every account, inactive ones included. Admin surface only.
func (r *postgresRepository) AllUsers(ctx context.Context) ([]User, error) {
	users := []User{}
	err := r.db.SelectContext(ctx, &users, `
		SELECT `+userColumns+`
		FROM users u
		JOIN roles r ON r.id = u.role_id
		ORDER BY u.full_name`)
	if err != nil {
		return nil, fmt.Errorf("list all users: %w", err)
	}
	return users, nil
}

func (r *postgresRepository) ListUsers(ctx context.Context, departmentID *uuid.UUID, minRoleLevel int) ([]User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.is_active = TRUE AND r.role_level >= $1`
	args := []interface{}{minRoleLevel}
	if departmentID != nil {
		query += ` AND u.department_id = $2`
		args = append(args, *departmentID)
	}
	query += ` ORDER BY u.full_name`

	users := []User{}
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *postgresRepository) ListUsersByRoleLevel(ctx context.Context, roleLevel int) ([]User, error) {
	users := []User{}
	err := r.db.SelectContext(ctx, &users, `
		SELECT `+userColumns+`
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.is_active = TRUE AND r.role_level = $1
		ORDER BY u.full_name`, roleLevel)
	if err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	return users, nil
}

func (r *postgresRepository) ListDepartments(ctx context.Context) ([]Department, error) {
	departments := []Department{}
	err := r.db.SelectContext(ctx, &departments, `
		SELECT id, department_name, department_code, manager_id, vice_manager_id, is_active, created_at
		FROM departments
		WHERE is_active = TRUE
		ORDER BY department_name`)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return departments, nil
}

func (r *postgresRepository) DepartmentCode(ctx context.Context, id uuid.UUID) (string, error) {
	var code string
	err := r.db.GetContext(ctx, &code, `SELECT department_code FROM departments WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("department not found: %s", id)
	}
	if err != nil {
		return "", fmt.Errorf("get department code: %w", err)
	}
	return code, nil
}

func (r *postgresRepository) ListRoles(ctx context.Context) ([]Role, error) {
	roles := []Role{}
	err := r.db.SelectContext(ctx, &roles, `
		SELECT id, role_name, role_level, created_at
		FROM roles
		ORDER BY role_level`)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}
