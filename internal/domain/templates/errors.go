package templates

import "errors"

var ErrNotFound = errors.New("email template not found")
