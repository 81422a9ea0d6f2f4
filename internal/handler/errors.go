package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/mocktest-backend/internal/repository"
	"github.com/stemsi/mocktest-backend/internal/response"
	"github.com/stemsi/mocktest-backend/internal/service"
	"github.com/stemsi/mocktest-backend/internal/session"
)

// statusFor maps a service error to its HTTP status and error code.
func statusFor(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict, response.ErrConflict
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, response.ErrInvalidCredentials
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, response.ErrEmailTaken
	case errors.Is(err, service.ErrExamNotAvailable):
		return http.StatusForbidden, response.ErrExamNotAvailable
	case errors.Is(err, service.ErrNoQuestions):
		return http.StatusBadRequest, response.ErrNoQuestions
	case errors.Is(err, service.ErrInvalidCorrectAnswer):
		return http.StatusBadRequest, response.ErrInvalidCorrectAnswer
	case errors.Is(err, service.ErrInvalidSchedule):
		return http.StatusBadRequest, response.ErrInvalidSchedule
	case errors.Is(err, service.ErrSessionNotStarted):
		return http.StatusNotFound, response.ErrSessionNotStarted
	case errors.Is(err, service.ErrResultNotFound):
		return http.StatusNotFound, response.ErrResultNotFound
	case errors.Is(err, session.ErrSubmissionInProgress):
		return http.StatusConflict, response.ErrSubmissionInProgress
	case errors.Is(err, session.ErrAlreadySubmitted):
		return http.StatusConflict, response.ErrAlreadySubmitted
	case errors.Is(err, session.ErrSubmissionFailed):
		return http.StatusBadGateway, response.ErrSubmissionFailed
	case errors.Is(err, service.ErrUnsupportedFileType):
		return http.StatusBadRequest, response.ErrUnsupportedFile
	case errors.Is(err, service.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, response.ErrFileTooLarge
	case errors.Is(err, service.ErrEmptySpreadsheet), errors.Is(err, service.ErrMissingColumn):
		return http.StatusBadRequest, response.ErrInvalidWorkbook
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// fail writes the error response for err. Unmapped errors are logged since
// the client only sees INTERNAL_ERROR.
func fail(c *gin.Context, log zerolog.Logger, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	response.Fail(c, status, code)
}

// paramID parses a uuid path parameter, answering INVALID_ID when malformed.
func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
