// Package scoring computes exam results from a question set and a student's answers.
package scoring

import "github.com/stemsi/mocktest-backend/internal/model"

// Score grades answers against questions. It is pure: the same inputs always
// yield the same Result, with subjects reported in model.Subjects order.
//
// Answers are matched to questions by question id across the whole answer
// set, so an answer filed under the wrong subject still counts exactly once.
// When a question was answered more than once, the last answer wins.
func Score(questions []model.Question, answers model.AnswerSet) model.Result {
	selected := latestAnswers(answers)

	bySubject := make(map[model.Subject][]*model.Question, len(model.Subjects))
	for i := range questions {
		q := &questions[i]
		bySubject[q.Subject] = append(bySubject[q.Subject], q)
	}

	var res model.Result
	for _, subject := range model.Subjects {
		qs, ok := bySubject[subject]
		if !ok {
			continue
		}
		sr := scoreSubject(subject, qs, selected)
		res.Subjects = append(res.Subjects, sr)
		res.Total += sr.Score
		res.TotalMarks += sr.Total
		res.TotalQuestions += sr.TotalQuestions
		res.AnsweredQuestions += sr.Answered
		res.CorrectAnswers += sr.Correct
	}
	res.Percentage = percentage(res.Total, res.TotalMarks)
	return res
}

func scoreSubject(subject model.Subject, qs []*model.Question, selected map[string]string) model.SubjectResult {
	sr := model.SubjectResult{
		Subject:        subject,
		TotalQuestions: len(qs),
		Details:        make([]model.QuestionDetail, 0, len(qs)),
	}

	for _, q := range qs {
		marks := q.EffectiveMarks()
		sr.Total += marks

		correctText, _ := q.OptionText(q.CorrectAnswer)
		detail := model.QuestionDetail{
			QuestionID:     q.ID.String(),
			QuestionText:   q.QuestionText,
			SelectedAnswer: model.NotAnswered,
			CorrectAnswer:  correctText,
			Marks:          marks,
		}

		if optionID, answered := selected[q.ID.String()]; answered {
			sr.Answered++
			if text, ok := q.OptionText(optionID); ok {
				detail.SelectedAnswer = text
			} else {
				detail.SelectedAnswer = optionID
			}
			if optionID == q.CorrectAnswer {
				detail.IsCorrect = true
				detail.MarksAwarded = marks
				sr.Correct++
				sr.Score += marks
			}
		}

		sr.Details = append(sr.Details, detail)
	}

	sr.Percentage = percentage(sr.Score, sr.Total)
	return sr
}

// latestAnswers flattens the answer set into question id -> option id.
// Subjects are walked in fixed order so duplicate ids resolve deterministically.
func latestAnswers(answers model.AnswerSet) map[string]string {
	out := make(map[string]string, answers.Count())
	seen := make(map[model.Subject]bool, len(answers))
	for _, subject := range model.Subjects {
		seen[subject] = true
		for _, a := range answers[subject] {
			out[a.QuestionID] = a.SelectedAnswer
		}
	}
	for subject, list := range answers {
		if seen[subject] {
			continue
		}
		for _, a := range list {
			if _, ok := out[a.QuestionID]; !ok {
				out[a.QuestionID] = a.SelectedAnswer
			}
		}
	}
	return out
}

func percentage(score, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(score) / float64(total) * 100
}
