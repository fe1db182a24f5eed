package league

import "errors"

// ErrInvalidLeague is returned for a league document that cannot be served.
var ErrInvalidLeague = errors.New("invalid league")
