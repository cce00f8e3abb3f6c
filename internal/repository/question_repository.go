package repository

import (
	"context"
	"fmt"

	"github.com/Dauka12/olympiad-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuestionRepository handles question and option data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByExam retrieves all questions for an exam with their options,
// both ordered by order_num.
func (r *QuestionRepository) ListByExam(ctx context.Context, examID int64) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, text_rus, text_kaz, correct_option_id, order_num
		 FROM questions WHERE exam_id = $1
		 ORDER BY order_num, id`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	byID := make(map[int64]int)
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.TextRus, &q.TextKaz, &q.CorrectOptionID, &q.OrderNum); err != nil {
			return nil, err
		}
		byID[q.ID] = len(questions)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, nil
	}

	optRows, err := r.pool.Query(ctx,
		`SELECT o.id, o.question_id, o.text_rus, o.text_kaz, o.order_num
		 FROM options o
		 JOIN questions q ON o.question_id = q.id
		 WHERE q.exam_id = $1
		 ORDER BY o.order_num, o.id`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer optRows.Close()

	for optRows.Next() {
		var o model.Option
		if err := optRows.Scan(&o.ID, &o.QuestionID, &o.TextRus, &o.TextKaz, &o.OrderNum); err != nil {
			return nil, err
		}
		if idx, ok := byID[o.QuestionID]; ok {
			questions[idx].Options = append(questions[idx].Options, o)
		}
	}
	return questions, optRows.Err()
}

// GetByID retrieves a single question with its options.
func (r *QuestionRepository) GetByID(ctx context.Context, id int64) (*model.Question, error) {
	q := &model.Question{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, text_rus, text_kaz, correct_option_id, order_num
		 FROM questions WHERE id = $1`, id,
	).Scan(&q.ID, &q.ExamID, &q.TextRus, &q.TextKaz, &q.CorrectOptionID, &q.OrderNum)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, question_id, text_rus, text_kaz, order_num
		 FROM options WHERE question_id = $1 ORDER BY order_num, id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var o model.Option
		if err := rows.Scan(&o.ID, &o.QuestionID, &o.TextRus, &o.TextKaz, &o.OrderNum); err != nil {
			return nil, err
		}
		q.Options = append(q.Options, o)
	}
	return q, rows.Err()
}

// CreateWithOptions inserts a question and its options in one transaction.
// correctIndex designates which of the new options is the correct one.
func (r *QuestionRepository) CreateWithOptions(ctx context.Context, q *model.Question, correctIndex int) error {
	if correctIndex < 0 || correctIndex >= len(q.Options) {
		return fmt.Errorf("correct option index %d out of range [0,%d)", correctIndex, len(q.Options))
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO questions (exam_id, text_rus, text_kaz, order_num)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		q.ExamID, q.TextRus, q.TextKaz, q.OrderNum,
	).Scan(&q.ID)
	if err != nil {
		return err
	}

	for i := range q.Options {
		o := &q.Options[i]
		o.QuestionID = q.ID
		o.OrderNum = i
		err = tx.QueryRow(ctx,
			`INSERT INTO options (question_id, text_rus, text_kaz, order_num)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id`,
			o.QuestionID, o.TextRus, o.TextKaz, o.OrderNum,
		).Scan(&o.ID)
		if err != nil {
			return err
		}
	}

	q.CorrectOptionID = q.Options[correctIndex].ID
	if _, err := tx.Exec(ctx,
		`UPDATE questions SET correct_option_id = $1 WHERE id = $2`,
		q.CorrectOptionID, q.ID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ReplaceWithOptions rewrites a question's text and options wholesale.
// Old options (and answers pointing at them) are removed by FK cascade.
func (r *QuestionRepository) ReplaceWithOptions(ctx context.Context, q *model.Question, correctIndex int) error {
	if correctIndex < 0 || correctIndex >= len(q.Options) {
		return fmt.Errorf("correct option index %d out of range [0,%d)", correctIndex, len(q.Options))
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE questions SET text_rus = $1, text_kaz = $2, order_num = $3, correct_option_id = NULL
		 WHERE id = $4`,
		q.TextRus, q.TextKaz, q.OrderNum, q.ID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM options WHERE question_id = $1`, q.ID); err != nil {
		return err
	}

	for i := range q.Options {
		o := &q.Options[i]
		o.QuestionID = q.ID
		o.OrderNum = i
		err = tx.QueryRow(ctx,
			`INSERT INTO options (question_id, text_rus, text_kaz, order_num)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id`,
			o.QuestionID, o.TextRus, o.TextKaz, o.OrderNum,
		).Scan(&o.ID)
		if err != nil {
			return err
		}
	}

	q.CorrectOptionID = q.Options[correctIndex].ID
	if _, err := tx.Exec(ctx,
		`UPDATE questions SET correct_option_id = $1 WHERE id = $2`,
		q.CorrectOptionID, q.ID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Delete removes a question and its options (FK cascade).
func (r *QuestionRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	return err
}
