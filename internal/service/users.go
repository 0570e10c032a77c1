package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/mendyturner/xyberiq-app/internal/domain"
	"github.com/mendyturner/xyberiq-app/internal/password"
	"github.com/mendyturner/xyberiq-app/internal/repository"
)

// UserService encapsulates user operations within the bound tenant scope.
type UserService struct {
	users  repository.UserRepository
	roles  repository.RoleRepository
	node   *snowflake.Node
	logger *zap.Logger
}

// NewUserService wires dependencies.
func NewUserService(users repository.UserRepository, roles repository.RoleRepository, node *snowflake.Node, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.L()
	}
	return &UserService{users: users, roles: roles, node: node, logger: logger}
}

// CreateUserInput carries the fields needed to provision a user.
type CreateUserInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Roles     []domain.RoleKey
}

// Create provisions a user in the current tenant scope, hashing the
// password and assigning the requested roles.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (domain.User, error) {
	hash, err := password.Hash(input.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           s.node.Generate().Int64(),
		Email:        normalizeEmail(input.Email),
		PasswordHash: hash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Status:       domain.UserActive,
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		return domain.User{}, err
	}

	for _, key := range input.Roles {
		role, err := s.roles.GetByKey(ctx, key)
		if err != nil {
			return domain.User{}, fmt.Errorf("role %s not provisioned: %w", key, err)
		}
		if err := s.roles.Assign(ctx, created.ID, role.ID); err != nil {
			return domain.User{}, err
		}
	}

	return s.users.GetByID(ctx, created.ID)
}

// Authenticate verifies the credentials for a user in the current tenant
// scope. An unknown email and a wrong password both yield
// ErrInvalidCredentials; callers must not be able to tell them apart.
func (s *UserService) Authenticate(ctx context.Context, email, plaintext string) (domain.User, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrInvalidCredentials
		}
		return domain.User{}, err
	}

	valid, err := password.Verify(plaintext, user.PasswordHash)
	if err != nil || !valid {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	if user.Status != domain.UserActive {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return user, nil
}

// GetByEmail loads a user by normalized email within the current scope.
func (s *UserService) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.users.GetByEmail(ctx, normalizeEmail(email))
}

// GetByID loads a user within the current scope.
func (s *UserService) GetByID(ctx context.Context, id int64) (domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// SetPassword replaces the user's password hash.
func (s *UserService) SetPassword(ctx context.Context, userID int64, plaintext string) error {
	hash, err := password.Hash(plaintext)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.UpdatePasswordHash(ctx, userID, hash)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
