// Package errorspkg provides common app errors.
package errorspkg

import "errors"

// KindInternal is the error kind reported for unexpected failures.
const KindInternal = "Internal"

// ErrInternal indicates internal server error.
var ErrInternal = errors.New("internal")
