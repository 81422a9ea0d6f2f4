package model

import (
	"time"

	"github.com/google/uuid"
)

// Subject is one of the fixed exam sections.
type Subject string

const (
	SubjectMathematics Subject = "mathematics"
	SubjectPhysics     Subject = "physics"
	SubjectChemistry   Subject = "chemistry"
)

// Subjects lists every subject in display order.
var Subjects = []Subject{SubjectMathematics, SubjectPhysics, SubjectChemistry}

// Valid reports whether s is one of the known subjects.
func (s Subject) Valid() bool {
	switch s {
	case SubjectMathematics, SubjectPhysics, SubjectChemistry:
		return true
	}
	return false
}

// DisplayName returns the human readable subject name.
func (s Subject) DisplayName() string {
	switch s {
	case SubjectMathematics:
		return "Mathematics"
	case SubjectPhysics:
		return "Physics"
	case SubjectChemistry:
		return "Chemistry"
	default:
		return string(s)
	}
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// DefaultMarks is awarded for a question whose marks were not set.
const DefaultMarks = 4

// Option is one labelled choice of a question.
type Option struct {
	ID   string `json:"id" binding:"required,max=10"`
	Text string `json:"text" binding:"required,max=1000"`
}

// Question represents a single multiple-choice exam question.
type Question struct {
	ID            uuid.UUID  `json:"id"`
	ExamID        uuid.UUID  `json:"exam_id"`
	Subject       Subject    `json:"subject"`
	QuestionText  string     `json:"question_text"`
	Options       []Option   `json:"options"`
	CorrectAnswer string     `json:"correct_answer"`
	Marks         int        `json:"marks"`
	ImageURL      string     `json:"image_url,omitempty"`
	Difficulty    Difficulty `json:"difficulty"`
	Topic         string     `json:"topic"`
	Explanation   string     `json:"explanation,omitempty"`
	OrderNum      int        `json:"order_num"`
	CreatedAt     time.Time  `json:"created_at"`
}

// OptionText returns the text of the option with the given id.
func (q *Question) OptionText(id string) (string, bool) {
	for _, o := range q.Options {
		if o.ID == id {
			return o.Text, true
		}
	}
	return "", false
}

// HasOption reports whether the question offers an option with the given id.
func (q *Question) HasOption(id string) bool {
	_, ok := q.OptionText(id)
	return ok
}

// EffectiveMarks returns the marks value, falling back to DefaultMarks.
func (q *Question) EffectiveMarks() int {
	if q.Marks <= 0 {
		return DefaultMarks
	}
	return q.Marks
}

// QuestionForStudent is a question without the correct answer, sent to students.
type QuestionForStudent struct {
	ID           uuid.UUID `json:"id"`
	Subject      Subject   `json:"subject"`
	QuestionText string    `json:"question_text"`
	Options      []Option  `json:"options"`
	Marks        int       `json:"marks"`
	ImageURL     string    `json:"image_url,omitempty"`
	OrderNum     int       `json:"order_num"`
}

// ForStudent strips the answer key and explanation.
func (q *Question) ForStudent() QuestionForStudent {
	return QuestionForStudent{
		ID:           q.ID,
		Subject:      q.Subject,
		QuestionText: q.QuestionText,
		Options:      q.Options,
		Marks:        q.EffectiveMarks(),
		ImageURL:     q.ImageURL,
		OrderNum:     q.OrderNum,
	}
}

// AddQuestionRequest is the payload for adding a question to an exam.
type AddQuestionRequest struct {
	Subject       string   `json:"subject" binding:"required,subject"`
	QuestionText  string   `json:"question_text" binding:"required,min=1,max=4000"`
	Options       []Option `json:"options" binding:"required,min=2,max=8,dive"`
	CorrectAnswer string   `json:"correct_answer" binding:"required,max=10"`
	Marks         int      `json:"marks" binding:"omitempty,min=1,max=100"`
	ImageURL      string   `json:"image_url" binding:"omitempty,max=500"`
	Difficulty    string   `json:"difficulty" binding:"omitempty,oneof=easy medium hard"`
	Topic         string   `json:"topic" binding:"omitempty,max=255"`
	Explanation   string   `json:"explanation" binding:"omitempty,max=4000"`
	OrderNum      int      `json:"order_num" binding:"min=0"`
}

// ReplaceQuestionsRequest is the payload for bulk replacing questions.
type ReplaceQuestionsRequest struct {
	Questions []AddQuestionRequest `json:"questions" binding:"dive"`
}
