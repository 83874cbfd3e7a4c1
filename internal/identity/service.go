package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrInvalidToken       = errors.New("invalid token")
	ErrForbidden          = errors.New("administrator role required")
)

type Claims struct {
	RoleLevel    int        `json:"role_level"`
	DepartmentID *uuid.UUID `json:"department_id,omitempty"`
	jwt.RegisteredClaims
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

type Service struct {
	repo        Repository
	jwtSecret   []byte
	tokenExpiry time.Duration
	logger      *zap.Logger
}

func NewService(repo Repository, jwtSecret string, tokenExpiry time.Duration, logger *zap.Logger) *Service {
	if tokenExpiry <= 0 {
		tokenExpiry = 8 * time.Hour
	}
	return &Service{
		repo:        repo,
		jwtSecret:   []byte(jwtSecret),
		tokenExpiry: tokenExpiry,
		logger:      logger.With(zap.String("component", "identity_service")),
	}
}

// Login verifies the password and issues a signed token carrying the role
// level and department claim.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Same error as a bad password so usernames cannot be probed.
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.signToken(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", zap.String("user_id", user.ID.String()))
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *Service) signToken(user *User) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.tokenExpiry)
	claims := Claims{
		RoleLevel:    user.RoleLevel,
		DepartmentID: user.DepartmentID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expiresAt, nil
}

// ValidateToken parses a bearer token into the actor context used by every
// downstream permission check.
func (s *Service) ValidateToken(tokenString string) (Context, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return Context{}, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Context{}, ErrInvalidToken
	}

	return Context{
		UserID:       userID,
		RoleLevel:    claims.RoleLevel,
		DepartmentID: claims.DepartmentID,
	}, nil
}

// Refresh issues a fresh token for an already authenticated actor, re-reading
// the user so role or department changes take effect.
func (s *Service) Refresh(ctx context.Context, actor Context) (*LoginResult, error) {
	user, err := s.repo.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	token, expiresAt, err := s.signToken(user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	if len(newPassword) < 8 {
		return fmt.Errorf("new password must be at least 8 characters")
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, userID, string(hash))
}

type RegisterRequest struct {
	Username     string
	Email        string
	Password     string
	FullName     string
	RoleID       uuid.UUID
	DepartmentID *uuid.UUID
}

type UpdateUserRequest struct {
	Email        string
	FullName     string
	RoleID       uuid.UUID
	DepartmentID *uuid.UUID
}

// Register creates a new account. Only administrators may do this; there is
// no self-service signup.
func (s *Service) Register(ctx context.Context, actor Context, req RegisterRequest) (*User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if req.Username == "" || req.Email == "" || req.FullName == "" {
		return nil, fmt.Errorf("username, email and full name are required")
	}
	if len(req.Password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}
	if req.RoleID == uuid.Nil {
		return nil, fmt.Errorf("role is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &User{
		ID:           uuid.New(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		RoleID:       req.RoleID,
		DepartmentID: req.DepartmentID,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		zap.String("user_id", user.ID.String()),
		zap.String("username", user.Username))
	// Re-read so the role level comes back joined in.
	return s.repo.GetUserByID(ctx, user.ID)
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// ListAllUsers returns every account, inactive ones included.
func (s *Service) ListAllUsers(ctx context.Context, actor Context) ([]User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.repo.AllUsers(ctx)
}

func (s *Service) UsersByDepartment(ctx context.Context, departmentID uuid.UUID) ([]User, error) {
	return s.repo.ListUsers(ctx, &departmentID, 0)
}

func (s *Service) UsersByRole(ctx context.Context, roleLevel int) ([]User, error) {
	return s.repo.ListUsersByRoleLevel(ctx, roleLevel)
}

// UpdateUser changes profile, role and department assignment. Admin only.
func (s *Service) UpdateUser(ctx context.Context, actor Context, id uuid.UUID, req UpdateUserRequest) (*User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if req.Email == "" || req.FullName == "" {
		return nil, fmt.Errorf("email and full name are required")
	}
	if req.RoleID == uuid.Nil {
		return nil, fmt.Errorf("role is required")
	}

	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Email = req.Email
	user.FullName = req.FullName
	user.RoleID = req.RoleID
	user.DepartmentID = req.DepartmentID
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return s.repo.GetUserByID(ctx, id)
}

// DeactivateUser disables the account. Existing tokens expire on their own;
// the login and refresh paths both reject inactive users.
func (s *Service) DeactivateUser(ctx context.Context, actor Context, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if err := s.repo.SetUserActive(ctx, id, false); err != nil {
		return err
	}
	s.logger.Info("user deactivated", zap.String("user_id", id.String()))
	return nil
}

// ListApprovers returns the users a document can be handed to at the given
// workflow level, scoped to the actor's department.
func (s *Service) ListApprovers(ctx context.Context, actor Context, minRoleLevel int) ([]User, error) {
	return s.repo.ListUsers(ctx, actor.DepartmentID, minRoleLevel)
}

func (s *Service) ListDepartments(ctx context.Context) ([]Department, error) {
	return s.repo.ListDepartments(ctx)
}

func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}
