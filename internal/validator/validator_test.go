package validator

import (
	"testing"

	govalidator "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/mocktest-backend/internal/model"
)

func newValidate() *govalidator.Validate {
	v := govalidator.New()
	v.SetTagName("binding")
	Register(v)
	return v
}

func TestSubjectTag(t *testing.T) {
	v := newValidate()
	opts := []model.Option{{ID: "a", Text: "1"}, {ID: "b", Text: "2"}}

	ok := model.AddQuestionRequest{Subject: "Physics", QuestionText: "g?", Options: opts, CorrectAnswer: "a"}
	assert.NoError(t, v.Struct(ok))

	bad := ok
	bad.Subject = "biology"
	err := v.Struct(bad)
	require.Error(t, err)

	fields := TranslateErrors(err)
	assert.Equal(t, "subject must be one of mathematics, physics or chemistry", fields["subject"])
}

func TestTranslateErrors_JSONFieldNames(t *testing.T) {
	v := newValidate()

	err := v.Struct(model.SecurityEventRequest{Kind: "screenshot"})
	require.Error(t, err)

	fields := TranslateErrors(err)
	assert.Contains(t, fields, "kind")
}
