/*
Package errs provides the custom error type and business error codes
shared by the REST handlers and the live WebSocket path.
*/
package errs

// 1xxx: general request handling errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates an unsupported Content-Type header.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates a malformed request body.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates trailing content after valid JSON.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates the per-IP request budget was exhausted.
	ErrRateLimitExceeded = 1005
)

// 2xxx: chat and message business logic errors
const (
	// ErrChatNotFound indicates the referenced chat does not exist.
	ErrChatNotFound = 2101

	// ErrNotChatMember indicates the authenticated user is not a member
	// of the target chat. Sends and joins are rejected with this code.
	ErrNotChatMember = 2102

	// ErrMessageContentTooLong indicates the message text exceeded the limit.
	ErrMessageContentTooLong = 2201

	// ErrMessageEmpty indicates a send with neither text nor attachment.
	ErrMessageEmpty = 2202

	// ErrPersistFailed indicates the message store was unavailable. The
	// message was not persisted and was not delivered; the client may retry.
	ErrPersistFailed = 2301
)

// 3xxx: user, session and security errors
const (
	// ErrUnauthorized indicates the request or connection carries no valid identity.
	ErrUnauthorized = 3001

	// ErrInvalidCredentials indicates a failed username/password check.
	ErrInvalidCredentials = 3002

	// ErrInvalidUsername indicates a username that fails format validation.
	ErrInvalidUsername = 3003

	// ErrInvalidPassword indicates a password that fails length validation.
	ErrInvalidPassword = 3004

	// ErrUserAlreadyExists indicates a registration conflict on username.
	ErrUserAlreadyExists = 3005

	// ErrUserNotFound indicates the referenced account does not exist.
	ErrUserNotFound = 3006

	// ErrTargetNotFound indicates a call signal referencing an unknown identity.
	ErrTargetNotFound = 3007

	// ErrAlreadyBound indicates an attempt to bind a connection that is
	// already bound to a different identity. This is a protocol violation
	// by the client, not a recoverable runtime condition.
	ErrAlreadyBound = 3008
)

// 4xxx: attachment errors
const (
	// ErrFileSizeTooLarge indicates the attachment exceeds the size limit.
	ErrFileSizeTooLarge = 4001

	// ErrFileTypeInvalid indicates a disallowed file extension or MIME type.
	ErrFileTypeInvalid = 4002

	// ErrFileStorageFailed indicates the blob store rejected the operation.
	ErrFileStorageFailed = 4003
)

// 5xxx: internal system errors
const (
	// ErrUnknown represents an unclassified internal server error.
	ErrUnknown = 5000
)
