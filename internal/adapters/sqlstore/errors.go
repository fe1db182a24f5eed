package sqlstore

import "errors"

// ErrUnknownDriver is returned by Open for a driver other than sqlite or postgres.
var ErrUnknownDriver = errors.New("unknown sql driver")
