package util

import "errors"

var (
	ErrChecksumMismatch    = errors.New("checksum mismatch")
	ErrInvalidInitialPages = errors.New("initial pages must be positive")
	ErrMaxMapSizeExceeded  = errors.New("size exceeds maximum mapping size")
	ErrPageOutOfBounds     = errors.New("page out of bounds")
	ErrDiskManagerNil      = errors.New("disk manager is nil")
	ErrInvalidPoolSize     = errors.New("invalid pool size")
	ErrInvalidBucketSize   = errors.New("invalid bucket size")
	ErrPageNotFound        = errors.New("page not found")
)
