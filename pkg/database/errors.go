package database

import "errors"

// ErrNotReady reports a database that cannot be reached.
var ErrNotReady = errors.New("database not ready")
