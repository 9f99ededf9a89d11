package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: User & Auth errors
// 12000-12999: Problem & Checker errors
// 13000-13999: Submission & Judge errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	Forbidden           ErrorCode = 10005
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Store errors (10100-10199)
	StoreError          ErrorCode = 10100
	RecordNotFound      ErrorCode = 10101
	RecordAlreadyExists ErrorCode = 10102

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200
	LockFailed ErrorCode = 10203

	// Validation errors (10300-10399)
	ValidationFailed ErrorCode = 10300
	InvalidFormat    ErrorCode = 10301

	// ========== User & Auth Errors (11000-11999) ==========

	InvalidCredentials ErrorCode = 11000
	UserNotFound       ErrorCode = 11001
	SessionExpired     ErrorCode = 11003
	SessionInvalid     ErrorCode = 11004

	// ========== Problem & Checker Errors (12000-12999) ==========

	ProblemNotFound      ErrorCode = 12000
	CheckerNotFound      ErrorCode = 12100
	CheckerUploadDenied  ErrorCode = 12101
	CheckerInvalidFormat ErrorCode = 12102

	// ========== Submission & Judge Errors (13000-13999) ==========

	SubmissionNotFound     ErrorCode = 13000
	SubmissionCreateFailed ErrorCode = 13001
	LanguageNotSupported   ErrorCode = 13003
	JudgeInProgress        ErrorCode = 13004

	JudgeQueueFull     ErrorCode = 13100
	JudgeSystemError   ErrorCode = 13101
	SandboxUnavailable ErrorCode = 13102
	CheckerRunFailed   ErrorCode = 13103
	LogNotFound        ErrorCode = 13200
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	Success: "Success",

	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "Unauthorized",
	Forbidden:           "Forbidden",
	ServiceUnavailable:  "Service unavailable",
	Timeout:             "Operation timed out",

	StoreError:          "Store operation failed",
	RecordNotFound:      "Record not found",
	RecordAlreadyExists: "Record already exists",

	CacheError: "Cache operation failed",
	LockFailed: "Failed to acquire lock",

	ValidationFailed: "Validation failed",
	InvalidFormat:    "Invalid format",

	InvalidCredentials: "Invalid username or password",
	UserNotFound:       "User not found",
	SessionExpired:     "Session has expired",
	SessionInvalid:     "Session is invalid",

	ProblemNotFound:      "Problem not found",
	CheckerNotFound:      "Checker script not found",
	CheckerUploadDenied:  "Checker script contains unsafe operations",
	CheckerInvalidFormat: "Checker script format is not supported",

	SubmissionNotFound:     "Submission not found",
	SubmissionCreateFailed: "Failed to create submission",
	LanguageNotSupported:   "Language is not supported",
	JudgeInProgress:        "Submission is already being judged",

	JudgeQueueFull:     "Judge queue is full",
	JudgeSystemError:   "Judge system error",
	SandboxUnavailable: "Sandbox runtime is unavailable",
	CheckerRunFailed:   "Checker execution failed",
	LogNotFound:        "Submission log not found",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == Unauthorized, c == InvalidCredentials, c == SessionExpired, c == SessionInvalid:
		return 401
	case c == Forbidden:
		return 403
	case c == NotFound, c == RecordNotFound, c == UserNotFound, c == ProblemNotFound,
		c == SubmissionNotFound, c == CheckerNotFound, c == LogNotFound:
		return 404
	case c == RecordAlreadyExists, c == JudgeInProgress:
		return 409
	case c == ServiceUnavailable, c == SandboxUnavailable, c == JudgeQueueFull:
		return 503
	case c >= 10300 && c < 10400:
		return 400
	case c == InvalidParams, c == LanguageNotSupported, c == CheckerUploadDenied, c == CheckerInvalidFormat:
		return 400
	default:
		return 500
	}
}
