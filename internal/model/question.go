package model

// Question is a single olympiad question with bilingual text. Exactly one
// of its options is designated correct; that designation is visible only in
// admin views and is stripped before anything reaches a student session.
type Question struct {
	ID              int64    `json:"id"`
	ExamID          int64    `json:"exam_id"`
	TextRus         string   `json:"questionRus"`
	TextKaz         string   `json:"questionKaz"`
	CorrectOptionID int64    `json:"correctOptionId"`
	OrderNum        int      `json:"order_num"`
	Options         []Option `json:"options"`
}

// Option is one selectable answer for a question.
type Option struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	TextRus    string `json:"optionRus"`
	TextKaz    string `json:"optionKaz"`
	OrderNum   int    `json:"order_num"`
}

// QuestionForStudent is a question with the correct-option designation
// removed, as served inside a session or the cached exam payload.
type QuestionForStudent struct {
	ID       int64    `json:"id"`
	TextRus  string   `json:"questionRus"`
	TextKaz  string   `json:"questionKaz"`
	OrderNum int      `json:"order_num"`
	Options  []Option `json:"options"`
}

// ForStudent strips the correct-option designation.
func (q Question) ForStudent() QuestionForStudent {
	return QuestionForStudent{
		ID:       q.ID,
		TextRus:  q.TextRus,
		TextKaz:  q.TextKaz,
		OrderNum: q.OrderNum,
		Options:  q.Options,
	}
}

// AddQuestionRequest is the payload for adding a question to a DRAFT exam.
type AddQuestionRequest struct {
	TextRus            string             `json:"questionRus" binding:"required,min=1,max=2000"`
	TextKaz            string             `json:"questionKaz" binding:"required,min=1,max=2000"`
	OrderNum           int                `json:"order_num" binding:"min=0"`
	Options            []AddOptionRequest `json:"options" binding:"required,min=2,dive"`
	CorrectOptionIndex int                `json:"correctOptionIndex" binding:"min=0"`
}

// AddOptionRequest is one option inside AddQuestionRequest.
type AddOptionRequest struct {
	TextRus string `json:"optionRus" binding:"required,min=1,max=1000"`
	TextKaz string `json:"optionKaz" binding:"required,min=1,max=1000"`
}

// UpdateQuestionRequest replaces a question's text and options wholesale.
type UpdateQuestionRequest = AddQuestionRequest
