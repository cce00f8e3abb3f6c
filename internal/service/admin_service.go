package service

import (
	"context"

	"github.com/Dauka12/olympiad-backend/internal/model"
	"github.com/Dauka12/olympiad-backend/internal/repository"
)

// AdminService handles administrator account lookup.
type AdminService struct {
	repo *repository.AdminRepository
}

// NewAdminService creates a new AdminService.
func NewAdminService(repo *repository.AdminRepository) *AdminService {
	return &AdminService{repo: repo}
}

// GetByEmail retrieves an admin by email.
func (s *AdminService) GetByEmail(ctx context.Context, email string) (*model.Admin, error) {
	return s.repo.GetByEmail(ctx, email)
}

// GetByID retrieves an admin by primary key.
func (s *AdminService) GetByID(ctx context.Context, id int) (*model.Admin, error) {
	return s.repo.GetByID(ctx, id)
}

// Create inserts a new admin account. Used by the create-admin CLI.
func (s *AdminService) Create(ctx context.Context, a *model.Admin) error {
	return s.repo.Create(ctx, a)
}
