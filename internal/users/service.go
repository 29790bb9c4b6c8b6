package users

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/novagile/wareflow-backend/pkg/db/models"
	"github.com/novagile/wareflow-backend/pkg/enums"
	"github.com/novagile/wareflow-backend/pkg/errors"
)

// Service exposes user lookups needed by the operational flows.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetRole(ctx context.Context, id uuid.UUID) (enums.UserRole, error)
}

type service struct {
	repo Repository
}

// NewService wires a users service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if id == uuid.Nil {
		return nil, errors.New(errors.CodeValidation, "user id is required")
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "loading user")
	}
	if user == nil {
		return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("user %s not found", id))
	}
	return user, nil
}

func (s *service) GetRole(ctx context.Context, id uuid.UUID) (enums.UserRole, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return user.Role, nil
}
