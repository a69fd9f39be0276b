package delivery

import "errors"

// ErrRecordNotFound is returned by ledgers for unknown keys.
var ErrRecordNotFound = errors.New("delivery record not found")
