package response

// ErrCode is a typed error code for API error identification.
type ErrCode string

const (
	ErrTokenInvalid ErrCode = "TOKEN_INVALID"

	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	ErrNotFound ErrCode = "NOT_FOUND"

	ErrAttemptSubmitted ErrCode = "ATTEMPT_SUBMITTED"
	ErrUnknownQuestion  ErrCode = "UNKNOWN_QUESTION"

	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrNotFound:
		return "Resource not found."
	case ErrAttemptSubmitted:
		return "This attempt has already been submitted."
	case ErrUnknownQuestion:
		return "Response references a question that is not part of this attempt."
	case ErrInternal:
		return "Internal server error."
	default:
		return "Unexpected error."
	}
}
