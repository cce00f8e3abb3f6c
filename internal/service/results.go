package service

import (
	"math"

	"github.com/Dauka12/olympiad-backend/internal/model"
)

// SessionResults is the student-facing review of an attempt: how much was
// answered and what was selected per question. Correctness is deliberately
// absent; correct options never reach the student path.
type SessionResults struct {
	SessionID            string           `json:"sessionId"`
	TotalQuestions       int              `json:"totalQuestions"`
	AnsweredCount        int              `json:"answeredCount"`
	CompletionPercentage int              `json:"completionPercentage"`
	Review               []QuestionReview `json:"review"`
}

// QuestionReview is one row of the per-question review.
type QuestionReview struct {
	QuestionID      int64  `json:"questionId"`
	TextRus         string `json:"questionRus"`
	TextKaz         string `json:"questionKaz"`
	Answered        bool   `json:"answered"`
	SelectedOption  *int64 `json:"selectedOptionId,omitempty"`
	SelectedTextRus string `json:"selectedOptionRus,omitempty"`
	SelectedTextKaz string `json:"selectedOptionKaz,omitempty"`
}

// BuildResults projects a loaded session into its results view. Pure: no
// I/O, no mutation of the session. Duplicate answers for one question (which
// the store forbids anyway) cannot double count.
func BuildResults(session *model.ExamSession) SessionResults {
	selected := make(map[int64]int64, len(session.Answers))
	for _, a := range session.Answers {
		selected[a.QuestionID] = a.SelectedOptionID
	}

	review := make([]QuestionReview, 0, len(session.Questions))
	answered := 0
	for _, q := range session.Questions {
		row := QuestionReview{
			QuestionID: q.ID,
			TextRus:    q.TextRus,
			TextKaz:    q.TextKaz,
		}
		if optID, ok := selected[q.ID]; ok {
			answered++
			row.Answered = true
			row.SelectedOption = &optID
			for _, o := range q.Options {
				if o.ID == optID {
					row.SelectedTextRus = o.TextRus
					row.SelectedTextKaz = o.TextKaz
					break
				}
			}
		}
		review = append(review, row)
	}

	total := len(session.Questions)
	percentage := 0
	if total > 0 {
		percentage = int(math.Round(100 * float64(answered) / float64(total)))
	}

	return SessionResults{
		SessionID:            session.ID.String(),
		TotalQuestions:       total,
		AnsweredCount:        answered,
		CompletionPercentage: percentage,
		Review:               review,
	}
}
