package emaillog

import "errors"

var ErrNotFound = errors.New("email log not found")
