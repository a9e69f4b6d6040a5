package repository

import "errors"

// ErrStoreUnavailable means the loading phase cannot reach persistence. It is
// fatal to the current run and must surface to the scheduler instead of being
// swallowed.
var ErrStoreUnavailable = errors.New("store unavailable")
