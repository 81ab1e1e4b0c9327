package handlers

// Stable error codes returned in ErrorResponse.Code. Clients branch on these,
// not on messages.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	ErrCodeListFailed   = "list_failed"
	ErrCodeUpdateFailed = "update_failed"
	ErrCodeReportFailed = "report_failed"
)
