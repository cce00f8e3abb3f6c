package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dauka12/olympiad-backend/internal/model"
	"github.com/Dauka12/olympiad-backend/internal/repository"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrIINTaken is returned when registering an already-registered IIN.
var ErrIINTaken = errors.New("a student with this IIN is already registered")

// StudentService handles student registration and lookup.
type StudentService struct {
	repo *repository.StudentRepository
	auth *AuthService
}

// NewStudentService creates a new StudentService.
func NewStudentService(repo *repository.StudentRepository, auth *AuthService) *StudentService {
	return &StudentService{repo: repo, auth: auth}
}

// Register creates a student account from a registration request.
func (s *StudentService) Register(ctx context.Context, req *model.RegisterStudentRequest) (*model.Student, error) {
	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	student := &model.Student{
		IIN:          req.IIN,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		School:       req.School,
		Grade:        req.Grade,
		Language:     req.Language,
		PasswordHash: hash,
	}

	if err := s.repo.Create(ctx, student); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrIINTaken
		}
		return nil, fmt.Errorf("create student: %w", err)
	}
	return student, nil
}

// GetByIIN retrieves a student by national identification number.
func (s *StudentService) GetByIIN(ctx context.Context, iin string) (*model.Student, error) {
	return s.repo.GetByIIN(ctx, iin)
}

// GetByID retrieves a student by primary key.
func (s *StudentService) GetByID(ctx context.Context, id int) (*model.Student, error) {
	return s.repo.GetByID(ctx, id)
}
