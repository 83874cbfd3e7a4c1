package identity

import (
	"time"

	"github.com/google/uuid"
)

// Role levels rank a user's authority. Permission logic is level-based, not
// identity-based, except for creator-only operations.
const (
	RoleAssistant   = 1
	RoleViceManager = 2
	RoleManager     = 3
	RoleAdmin       = 4
)

type Role struct {
	ID        uuid.UUID `json:"id" db:"id"`
	RoleName  string    `json:"role_name" db:"role_name"`
	RoleLevel int       `json:"role_level" db:"role_level"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Department struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	DepartmentName string     `json:"department_name" db:"department_name"`
	DepartmentCode string     `json:"department_code" db:"department_code"`
	ManagerID      *uuid.UUID `json:"manager_id,omitempty" db:"manager_id"`
	ViceManagerID  *uuid.UUID `json:"vice_manager_id,omitempty" db:"vice_manager_id"`
	IsActive       bool       `json:"is_active" db:"is_active"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

type User struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Username     string     `json:"username" db:"username"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	FullName     string     `json:"full_name" db:"full_name"`
	RoleID       uuid.UUID  `json:"role_id" db:"role_id"`
	RoleLevel    int        `json:"role_level" db:"role_level"`
	DepartmentID *uuid.UUID `json:"department_id,omitempty" db:"department_id"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// Context is the authenticated identity resolved before any workflow call.
type Context struct {
	UserID       uuid.UUID
	RoleLevel    int
	DepartmentID *uuid.UUID
}

func (c Context) IsAdmin() bool {
	return c.RoleLevel >= RoleAdmin
}

// SameDepartment reports whether the actor belongs to the given department.
// A nil department on either side never matches.
func (c Context) SameDepartment(departmentID *uuid.UUID) bool {
	if c.DepartmentID == nil || departmentID == nil {
		return false
	}
	return *c.DepartmentID == *departmentID
}
