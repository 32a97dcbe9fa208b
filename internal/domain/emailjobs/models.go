package emailjobs

import "errors"

const (
	JobPending   = "pending"
	JobFollowUps = "followups"
	JobOverdue   = "overdue"
	JobSummaries = "summaries"
	JobAll       = "all"
)

// Names lists the jobs Run accepts.
var Names = []string{JobPending, JobFollowUps, JobOverdue, JobSummaries, JobAll}

// AllMembers is what JobAll runs, in order.
var AllMembers = []string{JobPending, JobFollowUps, JobOverdue}

const DefaultBatchSize = 50

const (
	OverdueTitle = "Deletion Request Update"
	SummaryTitle = "Daily Privacy Protection Summary"
)

var ErrUnknownJob = errors.New("unknown job")

// ItemResult is the outcome for one request or user a job touched.
type ItemResult struct {
	ID        string `json:"id"`
	Success   bool   `json:"success"`
	Skipped   bool   `json:"skipped,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

type Result struct {
	Job          string       `json:"job"`
	Processed    int          `json:"processed"`
	SuccessCount int          `json:"successCount"`
	FailureCount int          `json:"failureCount"`
	Skipped      int          `json:"skipped"`
	Results      []ItemResult `json:"results"`
}

func (r *Result) add(item ItemResult) {
	r.Processed++
	switch {
	case item.Skipped:
		r.Skipped++
	case item.Success:
		r.SuccessCount++
	default:
		r.FailureCount++
	}
	r.Results = append(r.Results, item)
}
