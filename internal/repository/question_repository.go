package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/mocktest-backend/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByExam retrieves all questions of an exam in subject and order_num order.
func (r *QuestionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, subject, question_text, options, correct_answer, marks,
		        image_url, difficulty, topic, explanation, order_num, created_at
		 FROM questions WHERE exam_id = $1
		 ORDER BY array_position(ARRAY['mathematics','physics','chemistry'], subject), order_num, created_at`,
		examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Subject, &q.QuestionText, &q.Options, &q.CorrectAnswer,
			&q.Marks, &q.ImageURL, &q.Difficulty, &q.Topic, &q.Explanation, &q.OrderNum, &q.CreatedAt); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

const insertQuestionSQL = `INSERT INTO questions (exam_id, subject, question_text, options, correct_answer, marks,
	                       image_url, difficulty, topic, explanation, order_num)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	 RETURNING id, created_at`

func questionArgs(q *model.Question) []any {
	return []any{q.ExamID, q.Subject, q.QuestionText, q.Options, q.CorrectAnswer, q.Marks,
		q.ImageURL, q.Difficulty, q.Topic, q.Explanation, q.OrderNum}
}

// Create inserts a new question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.pool.QueryRow(ctx, insertQuestionSQL, questionArgs(q)...).Scan(&q.ID, &q.CreatedAt)
}

// ReplaceForExam deletes every question of the exam and inserts qs in one transaction.
func (r *QuestionRepository) ReplaceForExam(ctx context.Context, examID uuid.UUID, qs []model.Question) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE exam_id = $1`, examID); err != nil {
			return fmt.Errorf("clear questions: %w", err)
		}

		batch := &pgx.Batch{}
		for i := range qs {
			qs[i].ExamID = examID
			batch.Queue(insertQuestionSQL, questionArgs(&qs[i])...)
		}
		br := tx.SendBatch(ctx, batch)
		for i := range qs {
			if err := br.QueryRow().Scan(&qs[i].ID, &qs[i].CreatedAt); err != nil {
				br.Close()
				return fmt.Errorf("insert question %d: %w", i+1, err)
			}
		}
		return br.Close()
	})
}

// Delete removes a question of the given exam.
func (r *QuestionRepository) Delete(ctx context.Context, examID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1 AND exam_id = $2`, id, examID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
