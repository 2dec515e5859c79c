package session

import "errors"

// ErrNotFound reports an unknown session id.
var ErrNotFound = errors.New("session: not found")
