package repository

import (
	"context"
	"fmt"

	"github.com/Dauka12/olympiad-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

const examColumns = `id, name_rus, name_kaz, type_rus, type_kaz, category_id, author_id,
	        start_time, duration_minutes, status, created_at, updated_at`

func scanExam(row interface{ Scan(...any) error }) (*model.Exam, error) {
	e := &model.Exam{}
	err := row.Scan(&e.ID, &e.NameRus, &e.NameKaz, &e.TypeRus, &e.TypeKaz, &e.CategoryID,
		&e.AuthorID, &e.StartTime, &e.DurationMinutes, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetByID retrieves an exam by its identifier.
func (r *ExamRepository) GetByID(ctx context.Context, id int64) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id))
}

// Create inserts a new exam.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (name_rus, name_kaz, type_rus, type_kaz, category_id, author_id,
		                    start_time, duration_minutes, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at`,
		e.NameRus, e.NameKaz, e.TypeRus, e.TypeKaz, e.CategoryID, e.AuthorID,
		e.StartTime, e.DurationMinutes, e.Status,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// Update saves mutable exam fields. Call only while the exam is DRAFT;
// the service layer enforces that.
func (r *ExamRepository) Update(ctx context.Context, e *model.Exam) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams
		 SET name_rus = $1, name_kaz = $2, type_rus = $3, type_kaz = $4,
		     category_id = $5, start_time = $6, duration_minutes = $7, updated_at = NOW()
		 WHERE id = $8`,
		e.NameRus, e.NameKaz, e.TypeRus, e.TypeKaz,
		e.CategoryID, e.StartTime, e.DurationMinutes, e.ID)
	return err
}

// UpdateStatus updates an exam's status.
func (r *ExamRepository) UpdateStatus(ctx context.Context, id int64, status model.ExamStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	return err
}

// Delete removes a DRAFT exam with its questions and options (FK cascade).
func (r *ExamRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM exams WHERE id = $1`, id)
	return err
}

// ListPaginated retrieves exams ordered by start time, optionally filtered
// by category, with total count for pagination.
func (r *ExamRepository) ListPaginated(ctx context.Context, categoryID *int64, limit, offset int) ([]model.Exam, int, error) {
	where := ``
	args := []any{}
	if categoryID != nil {
		args = append(args, *categoryID)
		where = ` WHERE category_id = $1`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM exams`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM exams%s ORDER BY start_time DESC LIMIT $%d OFFSET $%d`,
		examColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, 0, err
		}
		exams = append(exams, *e)
	}
	return exams, total, rows.Err()
}

// ListPublished returns all PUBLISHED exams.
// Used for payload cache prewarming on application startup.
func (r *ExamRepository) ListPublished(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams WHERE status = $1`, model.ExamStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}

// ListCategories returns all exam categories.
func (r *ExamRepository) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name_rus, name_kaz FROM categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.NameRus, &c.NameKaz); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}
