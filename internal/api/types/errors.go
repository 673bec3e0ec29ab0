package types

import (
	"errors"
	"net/http"

	appErr "github.com/accession-studio/engine/pkg/errors"
)

// FromAppError converts any error into the API error body. Metadata such as
// the merge target or deprecation reason is carried in Details.
func FromAppError(err error) *APIError {
	if err == nil {
		return nil
	}
	var e *appErr.AppError
	if errors.As(err, &e) {
		out := &APIError{Code: string(e.Code), Message: e.Message}
		if len(e.Meta) > 0 {
			out.Details = e.Meta
		}
		if e.Code == appErr.CodeInternal || e.Code == appErr.CodeUnknown {
			out.Details = nil
		}
		return out
	}
	return &APIError{Code: string(appErr.CodeUnknown), Message: "internal error"}
}

// StatusFor maps an error code onto an HTTP status.
func StatusFor(err error) int {
	switch appErr.CodeOf(err) {
	case appErr.CodeInvalid:
		return http.StatusBadRequest
	case appErr.CodeNotFound:
		return http.StatusNotFound
	case appErr.CodeDeprecated, appErr.CodeMerged:
		return http.StatusGone
	case appErr.CodeAlreadyExists, appErr.CodeConflict:
		return http.StatusConflict
	case appErr.CodeGenerationFailed, appErr.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
