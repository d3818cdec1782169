package workbench

import "errors"

// Sentinel errors matching the error taxonomy of spec §7. The
// dispatcher maps these to HTTP response codes.
var (
	ErrBadRequest   = errors.New("workbench: bad request")
	ErrNotFound     = errors.New("workbench: not found")
	ErrVerifyFailed = errors.New("workbench: put verification failed")
)
