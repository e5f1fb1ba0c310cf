package users

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidRole indicates a role outside admin/cashier.
var ErrInvalidRole = errors.New("role must be admin or cashier")

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns all staff accounts.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// Create hashes the password and stores the account.
func (s *Service) Create(ctx context.Context, username, password, role string) (User, error) {
	if err := validRole(role); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	user := User{Username: username, PasswordHash: string(hash), Role: role}
	id, err := s.repo.Create(ctx, user)
	if err != nil {
		return User{}, err
	}
	user.ID = id
	return user, nil
}

// Update changes username and role, rehashing the password only when a
// new one is supplied.
func (s *Service) Update(ctx context.Context, id int64, username, password, role string) error {
	if err := validRole(role); err != nil {
		return err
	}
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	existing.Username = username
	existing.Role = role
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		existing.PasswordHash = string(hash)
	}
	return s.repo.Update(ctx, existing)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func validRole(role string) error {
	if role != RoleAdmin && role != RoleCashier {
		return ErrInvalidRole
	}
	return nil
}
