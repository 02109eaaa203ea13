package errs

import (
	"fmt"
	"net/http"
	"strings"

	"skymessage/internal/pkg/logx"
)

// CustomError is the application error structure. It carries a business
// code for clients, a user-facing message and the HTTP status to respond
// with when the error crosses the REST boundary.
type CustomError struct {
	// Code is the business error code (see error_codes.go).
	Code int

	// Message is the user-friendly error description.
	Message string

	// Status is the HTTP status code for this error.
	Status int
}

// Error implements the error interface.
func (e CustomError) Error() string {
	return fmt.Sprintf("Error Code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// NewError builds a *CustomError from a predefined code. Optional details
// are applied printf-style when the message template has placeholders.
// Unknown codes degrade to ErrUnknown rather than panic.
func NewError(code int, details ...any) *CustomError {
	templateErr, ok := errorMap[code]

	if !ok {
		logx.Error(
			fmt.Errorf("unknown error code %d requested", code),
			"Unknown error code requested",
			"requested_code", code,
		)

		unknownErr := errorMap[ErrUnknown]
		return &unknownErr
	}

	customErr := templateErr

	if customErr.Status == 0 {
		customErr.Status = http.StatusOK
	}

	if code == ErrUnknown && len(details) > 0 {
		if originalErr, ok := details[0].(error); ok {
			logx.Error(originalErr, "Handling ErrUnknown with underlying error")
		}
	} else if len(details) > 0 {
		if strings.Contains(customErr.Message, "%") {
			customErr.Message = fmt.Sprintf(customErr.Message, details...)
		} else {
			logx.Warn("Details provided for error without formatting placeholders. Details ignored.",
				"code", code)
		}
	}

	return &customErr
}
