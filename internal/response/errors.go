package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrEmailTaken         ErrCode = "EMAIL_TAKEN"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Exam-specific ─────────────────────────────────────────────────
	ErrExamNotAvailable     ErrCode = "EXAM_NOT_AVAILABLE"
	ErrNoQuestions          ErrCode = "NO_QUESTIONS"
	ErrInvalidCorrectAnswer ErrCode = "INVALID_CORRECT_ANSWER"
	ErrInvalidSchedule      ErrCode = "INVALID_SCHEDULE"
	ErrSessionNotStarted    ErrCode = "SESSION_NOT_STARTED"
	ErrResultNotFound       ErrCode = "RESULT_NOT_FOUND"

	// ─── Submission ────────────────────────────────────────────────────
	ErrSubmissionInProgress ErrCode = "SUBMISSION_IN_PROGRESS"
	ErrAlreadySubmitted     ErrCode = "ALREADY_SUBMITTED"
	ErrSubmissionFailed     ErrCode = "SUBMISSION_FAILED"

	// ─── Media / Import ────────────────────────────────────────────────
	ErrFileRequired    ErrCode = "FILE_REQUIRED"
	ErrUnsupportedFile ErrCode = "UNSUPPORTED_FILE_TYPE"
	ErrFileTooLarge    ErrCode = "FILE_TOO_LARGE"
	ErrInvalidWorkbook ErrCode = "INVALID_WORKBOOK"
	ErrNothingToImport ErrCode = "NOTHING_TO_IMPORT"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Invalid email or password."
	case ErrEmailTaken:
		return "Email already registered. Try signing in instead."
	case ErrSessionInvalidated:
		return "Your session has ended. Please sign in again."
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid or expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	// ─── Exam-specific ─────────────────────────────────────────────────
	case ErrExamNotAvailable:
		return "This exam is not available right now."
	case ErrNoQuestions:
		return "This exam has no questions."
	case ErrInvalidCorrectAnswer:
		return "The correct answer must be one of the question's options."
	case ErrInvalidSchedule:
		return "The exam must end after it starts."
	case ErrSessionNotStarted:
		return "Start the exam before answering."
	case ErrResultNotFound:
		return "No result found for this exam."

	// ─── Submission ────────────────────────────────────────────────────
	case ErrSubmissionInProgress:
		return "Your exam is being submitted."
	case ErrAlreadySubmitted:
		return "This exam has already been submitted."
	case ErrSubmissionFailed:
		return "Submission failed. Please try again."

	// ─── Media / Import ────────────────────────────────────────────────
	case ErrFileRequired:
		return "A file upload is required."
	case ErrUnsupportedFile:
		return "Unsupported file type."
	case ErrFileTooLarge:
		return "File exceeds the size limit."
	case ErrInvalidWorkbook:
		return "The spreadsheet could not be read."
	case ErrNothingToImport:
		return "The spreadsheet has no importable rows."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
