package deletion

import "errors"

var (
	ErrNotFound                = errors.New("deletion request not found")
	ErrUserNotFound            = errors.New("user not found")
	ErrForbidden               = errors.New("forbidden")
	ErrStateConflict           = errors.New("invalid state transition")
	ErrUnsupportedJurisdiction = errors.New("unsupported jurisdiction")
)
