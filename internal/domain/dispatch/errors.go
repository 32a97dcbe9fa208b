package dispatch

import "errors"

var (
	ErrNoTransportConfigured = errors.New("no email transport configured")
	ErrMissingRecipient      = errors.New("company has no contact email")
	ErrFollowUpTooSoon       = errors.New("must wait at least 7 days between follow-up emails")
)
