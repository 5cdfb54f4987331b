package store

import "errors"

// ErrNotFound is returned by every store when the requested row does not
// exist or belongs to another tenant.
var ErrNotFound = errors.New("not found")
