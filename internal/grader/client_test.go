package grader

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/mocktest-backend/internal/model"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantOk  bool
		wantMsg string
		wantTot int
	}{
		{"wrapped results", 200, `{"message":"ok","results":{"total":8,"totalMarks":12}}`, true, "", 8},
		{"plain result", 200, `{"total":4,"totalMarks":8,"percentage":50}`, true, "", 4},
		{"error flag with 200", 200, `{"error":true,"message":"Exam closed"}`, false, "Exam closed", 0},
		{"error string", 200, `{"error":"bad","message":""}`, false, "Submission failed (200)", 0},
		{"non 2xx with message", 422, `{"message":"Invalid answers payload"}`, false, "Invalid answers payload", 0},
		{"non 2xx without body", 502, ``, false, "Submission failed (502)", 0},
		{"garbage on success", 200, `<html>`, false, "Invalid grader response", 0},
		{"error false", 201, `{"error":false,"results":{"total":2}}`, true, "", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Normalize(tt.status, []byte(tt.body))

			assert.Equal(t, tt.wantOk, out.IsOk())
			if tt.wantOk {
				r, ok := out.Result()
				require.True(t, ok)
				assert.Equal(t, tt.wantTot, r.Total)
			} else {
				assert.Equal(t, tt.wantMsg, out.Message())
			}
		})
	}
}

func TestNormalize_SubjectKeyedResults(t *testing.T) {
	body := `{
		"message": "Exam submitted successfully",
		"results": {
			"mathematics": 4, "physics": 0, "chemistry": 0,
			"total": 4, "totalMarks": 12, "percentage": 33.33,
			"details": {
				"physics": {"score": 0, "total": 4, "details": [
					{"questionId": "p1", "questionText": "g", "selectedAnswer": "9.8", "correctAnswer": "10", "isCorrect": false, "marks": 4, "marksAwarded": 0}
				]},
				"mathematics": {"score": 4, "total": 8, "details": [
					{"questionId": "m1", "questionText": "2+2", "selectedAnswer": "4", "correctAnswer": "4", "isCorrect": true, "marks": 4, "marksAwarded": 4},
					{"questionId": "m2", "questionText": "3*3", "selectedAnswer": "Not Answered", "correctAnswer": "9", "isCorrect": false, "marks": 4, "marksAwarded": 0}
				]},
				"chemistry": {"score": 0, "total": 0, "details": []}
			}
		}
	}`

	out := Normalize(200, []byte(body))
	require.True(t, out.IsOk(), out.Message())
	r, _ := out.Result()

	assert.Equal(t, 4, r.Total)
	assert.Equal(t, 12, r.TotalMarks)
	require.Len(t, r.Subjects, 3)
	assert.Equal(t, model.SubjectMathematics, r.Subjects[0].Subject)
	assert.Equal(t, model.SubjectPhysics, r.Subjects[1].Subject)
	assert.Equal(t, model.SubjectChemistry, r.Subjects[2].Subject)

	math, ok := r.Subject(model.SubjectMathematics)
	require.True(t, ok)
	assert.Equal(t, 4, math.Score)
	assert.Equal(t, 8, math.Total)
	assert.Equal(t, 2, math.TotalQuestions)
	assert.Equal(t, 1, math.Answered)
	assert.Equal(t, 1, math.Correct)
	assert.InDelta(t, 50.0, math.Percentage, 0.001)
	require.Len(t, math.Details, 2)
	assert.Equal(t, "m1", math.Details[0].QuestionID)
	assert.Equal(t, 4, math.Details[0].MarksAwarded)

	assert.Equal(t, 3, r.TotalQuestions)
	assert.Equal(t, 2, r.AnsweredQuestions)
	assert.Equal(t, 1, r.CorrectAnswers)
}

func TestNormalize_SubjectScoresWithoutDetails(t *testing.T) {
	out := Normalize(200, []byte(`{"results":{"mathematics":8,"chemistry":4,"total":12,"totalMarks":16}}`))
	require.True(t, out.IsOk())
	r, _ := out.Result()

	require.Len(t, r.Subjects, 2)
	assert.Equal(t, model.SubjectMathematics, r.Subjects[0].Subject)
	assert.Equal(t, 8, r.Subjects[0].Score)
	assert.Equal(t, model.SubjectChemistry, r.Subjects[1].Subject)
	assert.Equal(t, 4, r.Subjects[1].Score)
}

func TestClient_Submit(t *testing.T) {
	var got model.SubmissionPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, SubmitPath, r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"Exam submitted","results":{"total":12,"totalMarks":16,"percentage":75}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", 2*time.Second, zerolog.Nop())
	payload := model.SubmissionPayload{
		ExamID:         uuid.New(),
		StudentID:      uuid.New(),
		TabSwitchCount: 2,
		Answers:        model.AnswerSet{model.SubjectPhysics: {{QuestionID: "q1", SelectedAnswer: "a"}}},
	}

	out := c.Submit(context.Background(), payload)

	require.True(t, out.IsOk())
	r, _ := out.Result()
	assert.Equal(t, 12, r.Total)
	assert.Equal(t, payload.ExamID, got.ExamID)
	assert.Equal(t, 2, got.TabSwitchCount)
	assert.Equal(t, "a", got.Answers[model.SubjectPhysics][0].SelectedAnswer)
}

func TestClient_SubmitServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	out := NewClient(srv.URL, time.Second, zerolog.Nop()).Submit(context.Background(), model.SubmissionPayload{})

	assert.False(t, out.IsOk())
	assert.Equal(t, "Submission failed (503)", out.Message())
}

func TestClient_SubmitUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	out := NewClient(url, time.Second, zerolog.Nop()).Submit(context.Background(), model.SubmissionPayload{})

	assert.False(t, out.IsOk())
	assert.NotEmpty(t, out.Message())
}
