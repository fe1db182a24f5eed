package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound       = errors.New("not found")
	ErrSeasonNotFound = errors.New("season not found")
	ErrWeekNotFound   = errors.New("week not found")
	ErrMissingAnchor  = errors.New("season has no preseason anchor")
	ErrBrokenChain    = errors.New("prior rating does not match previous snapshot")
	ErrInvalidLimit   = errors.New("invalid leaderboard limit")
)
