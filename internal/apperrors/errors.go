package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrClientNotFound       = errors.New("client not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrDuplicatePlate       = errors.New("license plate already registered")
	ErrUnknownChannel       = errors.New("unknown notification channel")
	ErrMalformedClient      = errors.New("malformed client record")
	ErrMissingDestination   = errors.New("missing destination")
	ErrCacheMiss            = errors.New("cache miss")
	ErrUserNotFound         = errors.New("user not found")
	ErrDuplicateUser        = errors.New("username or email already registered")
)

// SendError is returned by channel transports when a message was not accepted.
type SendError struct {
	Channel string
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s sending failed: %v", e.Channel, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// IsSendError reports whether err carries a *SendError.
func IsSendError(err error) bool {
	var se *SendError
	return errors.As(err, &se)
}
