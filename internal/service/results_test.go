package service

import (
	"testing"
	"time"

	"github.com/Dauka12/olympiad-backend/internal/model"
	"github.com/google/uuid"
)

func sessionWithQuestions(n int) *model.ExamSession {
	s := &model.ExamSession{
		ID:              uuid.New(),
		ExamID:          5,
		StudentID:       7,
		DurationMinutes: 60,
		StartTime:       baseTime,
	}
	for i := 0; i < n; i++ {
		qid := int64(101 + i)
		s.Questions = append(s.Questions, model.QuestionForStudent{
			ID:      qid,
			TextRus: "Вопрос",
			TextKaz: "Сұрақ",
			Options: []model.Option{
				{ID: qid*2 - 1, QuestionID: qid, TextRus: "Да", TextKaz: "Иә"},
				{ID: qid * 2, QuestionID: qid, TextRus: "Нет", TextKaz: "Жоқ"},
			},
		})
	}
	return s
}

func TestBuildResultsCompletionPercentage(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		answered int
		want     int
	}{
		{"seven of ten", 10, 7, 70},
		{"all answered", 4, 4, 100},
		{"none answered", 4, 0, 0},
		{"one of three rounds down", 3, 1, 33},
		{"two of three rounds up", 3, 2, 67},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sessionWithQuestions(tt.total)
			for i := 0; i < tt.answered; i++ {
				q := s.Questions[i]
				s.Answers = append(s.Answers, model.StudentAnswer{
					SessionID:        s.ID,
					QuestionID:       q.ID,
					SelectedOptionID: q.Options[0].ID,
					AnsweredAt:       baseTime.Add(time.Duration(i) * time.Second),
				})
			}

			r := BuildResults(s)
			if r.TotalQuestions != tt.total {
				t.Errorf("total = %d, want %d", r.TotalQuestions, tt.total)
			}
			if r.AnsweredCount != tt.answered {
				t.Errorf("answered = %d, want %d", r.AnsweredCount, tt.answered)
			}
			if r.CompletionPercentage != tt.want {
				t.Errorf("completion = %d%%, want %d%%", r.CompletionPercentage, tt.want)
			}
		})
	}
}

func TestBuildResultsReviewRows(t *testing.T) {
	s := sessionWithQuestions(2)
	s.Answers = []model.StudentAnswer{{
		SessionID:        s.ID,
		QuestionID:       101,
		SelectedOptionID: s.Questions[0].Options[1].ID,
		AnsweredAt:       baseTime,
	}}

	r := BuildResults(s)
	if len(r.Review) != 2 {
		t.Fatalf("review rows = %d, want 2", len(r.Review))
	}

	first := r.Review[0]
	if !first.Answered || first.SelectedOption == nil {
		t.Fatal("answered question not marked answered")
	}
	if *first.SelectedOption != s.Questions[0].Options[1].ID {
		t.Errorf("selected option = %d, want %d", *first.SelectedOption, s.Questions[0].Options[1].ID)
	}
	if first.SelectedTextRus != "Нет" || first.SelectedTextKaz != "Жоқ" {
		t.Errorf("selected texts = %q/%q, want the option texts", first.SelectedTextRus, first.SelectedTextKaz)
	}

	second := r.Review[1]
	if second.Answered || second.SelectedOption != nil {
		t.Error("unanswered question marked answered")
	}
	if second.SelectedTextRus != "" {
		t.Errorf("unanswered selected text = %q, want empty", second.SelectedTextRus)
	}
}

func TestBuildResultsNoQuestions(t *testing.T) {
	s := sessionWithQuestions(0)
	r := BuildResults(s)
	if r.CompletionPercentage != 0 || r.TotalQuestions != 0 || r.AnsweredCount != 0 {
		t.Errorf("empty session results = %+v, want zeros", r)
	}
	if r.Review == nil || len(r.Review) != 0 {
		t.Errorf("review = %v, want empty non-nil slice", r.Review)
	}
}
