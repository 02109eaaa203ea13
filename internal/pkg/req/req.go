/*
Package req provides strict JSON request binding for the REST handlers.
*/
package req

import (
	"encoding/json"
	"net/http"
	"strings"

	"skymessage/internal/pkg/errs"
)

// MaxBodyBytes caps the size of any JSON request body.
const MaxBodyBytes int64 = 1 << 20 // 1 MB

// BindJSON decodes the request body into dst. Unknown fields, trailing
// content and non-JSON content types are rejected.
func BindJSON(w http.ResponseWriter, r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}
