package deletion

import "time"

const (
	IndividualPrice = 3.50
	BulkPrice       = 16.99

	FollowUpAfter     = 7 * 24 * time.Hour
	OverdueAfter      = 60 * 24 * time.Hour
	MaxAutoEmailsSent = 3

	OverdueNote = "Marked as failed due to no response after 60 days"
)

const (
	EventCreated       = "deletion.created"
	EventStatusChanged = "deletion.status_changed"
)
