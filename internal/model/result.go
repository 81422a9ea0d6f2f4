package model

// QuestionDetail is the scoring record of one question.
type QuestionDetail struct {
	QuestionID     string `json:"questionId"`
	QuestionText   string `json:"questionText"`
	SelectedAnswer string `json:"selectedAnswer"`
	CorrectAnswer  string `json:"correctAnswer"`
	IsCorrect      bool   `json:"isCorrect"`
	Marks          int    `json:"marks"`
	MarksAwarded   int    `json:"marksAwarded"`
}

// SubjectResult is the outcome of one subject.
type SubjectResult struct {
	Subject        Subject          `json:"subject"`
	Score          int              `json:"score"`
	Total          int              `json:"total"`
	TotalQuestions int              `json:"total_questions"`
	Answered       int              `json:"answered"`
	Correct        int              `json:"correct"`
	Percentage     float64          `json:"percentage"`
	Details        []QuestionDetail `json:"details"`
}

// Result is the computed outcome of a submitted session.
type Result struct {
	Subjects          []SubjectResult `json:"subjects"`
	Total             int             `json:"total"`
	TotalMarks        int             `json:"totalMarks"`
	Percentage        float64         `json:"percentage"`
	TotalQuestions    int             `json:"total_questions"`
	AnsweredQuestions int             `json:"answered_questions"`
	CorrectAnswers    int             `json:"correct_answers"`
	TimeTaken         int             `json:"time_taken,omitempty"`
	Grade             string          `json:"grade,omitempty"`
	Passed            bool            `json:"passed"`
}

// Subject returns the result of one subject, if present.
func (r *Result) Subject(s Subject) (*SubjectResult, bool) {
	for i := range r.Subjects {
		if r.Subjects[i].Subject == s {
			return &r.Subjects[i], true
		}
	}
	return nil, false
}
