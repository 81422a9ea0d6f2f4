// Package grader submits attempts to an external grading service.
package grader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/session"
)

// SubmitPath is the grader endpoint receiving submissions.
const SubmitPath = "/exams/submit"

// Client is a session.Sink backed by a remote grader over HTTP.
type Client struct {
	http *resty.Client
	log  zerolog.Logger
}

// NewClient creates a grader client for baseURL.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		http: c,
		log:  log.With().Str("component", "grader_client").Logger(),
	}
}

// envelope covers both shapes the grader answers with:
// {"message": "...", "results": {...}} and {"error": true, "message": "..."}.
type envelope struct {
	Results json.RawMessage `json:"results"`
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

// Submit posts the payload and reduces whatever comes back to an Outcome.
// The request is never retried.
func (c *Client) Submit(ctx context.Context, payload model.SubmissionPayload) session.Outcome {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(SubmitPath)
	if err != nil {
		c.log.Warn().Err(err).Str("session_id", payload.SessionID.String()).Msg("Grader request failed")
		return session.Err(err.Error())
	}

	return Normalize(resp.StatusCode(), resp.Body())
}

// Normalize converts a grader HTTP response into an Outcome.
func Normalize(status int, body []byte) session.Outcome {
	ok := status >= 200 && status < 300
	fallback := fmt.Sprintf("Submission failed (%d)", status)

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if ok {
			return session.Err("Invalid grader response")
		}
		return session.Err(fallback)
	}

	if !ok || truthy(env.Error) {
		if env.Message != "" {
			return session.Err(env.Message)
		}
		return session.Err(fallback)
	}

	raw := body
	if len(env.Results) > 0 && !bytes.Equal(env.Results, []byte("null")) {
		raw = env.Results
	}

	var result model.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return session.Err("Invalid grader response")
	}
	if len(result.Subjects) == 0 {
		result.Subjects = subjectsFromKeyed(raw)
		if result.TotalQuestions == 0 {
			for _, sr := range result.Subjects {
				result.TotalQuestions += sr.TotalQuestions
				result.AnsweredQuestions += sr.Answered
				result.CorrectAnswers += sr.Correct
			}
		}
	}
	return session.Ok(result)
}

// subjectBreakdown is one entry of the subject-keyed shape, where scores sit
// beside the totals and details is a map:
// {"mathematics":4,"total":4,"details":{"mathematics":{"score":4,"total":8,"details":[...]}}}.
type subjectBreakdown struct {
	Score   int                    `json:"score"`
	Total   int                    `json:"total"`
	Details []model.QuestionDetail `json:"details"`
}

// subjectsFromKeyed rebuilds the per-subject results of the subject-keyed
// shape in the canonical subject order. Anything else yields nil.
func subjectsFromKeyed(raw []byte) []model.SubjectResult {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	var breakdown map[model.Subject]subjectBreakdown
	if d, ok := fields["details"]; ok {
		if err := json.Unmarshal(d, &breakdown); err != nil {
			breakdown = nil
		}
	}

	var out []model.SubjectResult
	for _, subject := range model.Subjects {
		b, hasBreakdown := breakdown[subject]
		if !hasBreakdown {
			scoreRaw, ok := fields[string(subject)]
			if !ok || json.Unmarshal(scoreRaw, &b.Score) != nil {
				continue
			}
		}

		sr := model.SubjectResult{
			Subject:        subject,
			Score:          b.Score,
			Total:          b.Total,
			TotalQuestions: len(b.Details),
			Details:        b.Details,
		}
		if sr.Details == nil {
			sr.Details = []model.QuestionDetail{}
		}
		for _, d := range b.Details {
			if d.SelectedAnswer != "" && d.SelectedAnswer != model.NotAnswered {
				sr.Answered++
			}
			if d.IsCorrect {
				sr.Correct++
			}
		}
		if sr.Total > 0 {
			sr.Percentage = float64(sr.Score) / float64(sr.Total) * 100
		}
		out = append(out, sr)
	}
	return out
}

func truthy(raw json.RawMessage) bool {
	switch strings.TrimSpace(string(raw)) {
	case "", "null", "false", `""`, "0":
		return false
	}
	return true
}
