package errs

import "net/http"

// errorMap holds the template CustomError for every business code.
// A zero Status defaults to HTTP 200; the business code still marks
// the response as a failure.
var errorMap = map[int]CustomError{
	// 1xxx: general request handling errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format."},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format."},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data."},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: chat and message business logic errors
	ErrChatNotFound:          {Code: ErrChatNotFound, Message: "Chat not found.", Status: http.StatusNotFound},
	ErrNotChatMember:         {Code: ErrNotChatMember, Message: "You are not a member of this chat.", Status: http.StatusForbidden},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long."},
	ErrMessageEmpty:          {Code: ErrMessageEmpty, Message: "Message is empty."},
	ErrPersistFailed:         {Code: ErrPersistFailed, Message: "Message could not be saved. Please retry.", Status: http.StatusServiceUnavailable},

	// 3xxx: user, session and security errors
	ErrUnauthorized:       {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Incorrect username or password."},
	ErrInvalidUsername:    {Code: ErrInvalidUsername, Message: "Invalid username."},
	ErrInvalidPassword:    {Code: ErrInvalidPassword, Message: "Invalid password."},
	ErrUserAlreadyExists:  {Code: ErrUserAlreadyExists, Message: "Username is already taken."},
	ErrUserNotFound:       {Code: ErrUserNotFound, Message: "Account not found.", Status: http.StatusNotFound},
	ErrTargetNotFound:     {Code: ErrTargetNotFound, Message: "Call target not found.", Status: http.StatusNotFound},
	ErrAlreadyBound:       {Code: ErrAlreadyBound, Message: "Connection is already authenticated."},

	// 4xxx: attachment errors
	ErrFileSizeTooLarge: {Code: ErrFileSizeTooLarge, Message: "File is too large."},
	ErrFileTypeInvalid:  {Code: ErrFileTypeInvalid, Message: "This file type is not allowed."},
	ErrFileStorageFailed: {Code: ErrFileStorageFailed, Message: "File upload failed. Please try again."},

	// 5xxx: internal system errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
