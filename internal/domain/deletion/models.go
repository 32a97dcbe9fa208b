package deletion

import (
	"time"

	"wipetrace/internal/domain/enums"
)

type DeletionRequest struct {
	ID                  string              `json:"id"`
	UserID              string              `json:"userId"`
	CompanyID           string              `json:"companyId"`
	CompanyName         string              `json:"companyName,omitempty"`
	Jurisdiction        enums.Jurisdiction  `json:"jurisdiction"`
	RequestType         enums.RequestType   `json:"requestType"`
	Status              enums.RequestStatus `json:"status"`
	Priority            enums.Priority      `json:"priority"`
	RequestorName       string              `json:"requestorName"`
	RequestorEmail      string              `json:"requestorEmail"`
	RequestorPhone      string              `json:"requestorPhone,omitempty"`
	RequestorAddress    string              `json:"requestorAddress,omitempty"`
	EmailsSent          int                 `json:"emailsSent"`
	ResponseReceived    bool                `json:"responseReceived"`
	Cost                float64             `json:"cost"`
	Notes               string              `json:"notes,omitempty"`
	InternalNotes       string              `json:"-"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
	SentAt              *time.Time          `json:"sentAt,omitempty"`
	AcknowledgedAt      *time.Time          `json:"acknowledgedAt,omitempty"`
	CompletedAt         *time.Time          `json:"completedAt,omitempty"`
	EstimatedCompletion *time.Time          `json:"estimatedCompletion,omitempty"`
	ActualCompletion    *time.Time          `json:"actualCompletion,omitempty"`
	LastEmailSent       *time.Time          `json:"lastEmailSent,omitempty"`
}

// Requestor is the identity snapshot captured when a request is created.
type Requestor struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

func (r DeletionRequest) Requestor() Requestor {
	return Requestor{Name: r.RequestorName, Email: r.RequestorEmail, Phone: r.RequestorPhone, Address: r.RequestorAddress}
}

type CreateInput struct {
	UserID       string
	CompanyID    string
	Jurisdiction enums.Jurisdiction
	Requestor    Requestor
	RequestType  enums.RequestType
	Priority     enums.Priority
	Cost         *float64
	Notes        string
}

type BulkInput struct {
	UserID       string
	CompanyIDs   []string
	Jurisdiction enums.Jurisdiction
	Requestor    Requestor
	Priority     enums.Priority
}

type BulkItem struct {
	CompanyID string           `json:"companyId"`
	Success   bool             `json:"success"`
	Request   *DeletionRequest `json:"request,omitempty"`
	Error     string           `json:"error,omitempty"`
}

type BulkResult struct {
	Results   []BulkItem `json:"results"`
	Created   int        `json:"created"`
	Failed    int        `json:"failed"`
	TotalCost float64    `json:"totalCost"`
}

// Patch lists the columns an update touches. Nil fields are left alone.
type Patch struct {
	Status              *enums.RequestStatus
	Notes               *string
	InternalNotes       *string
	ResponseReceived    *bool
	SentAt              *time.Time
	AcknowledgedAt      *time.Time
	CompletedAt         *time.Time
	ActualCompletion    *time.Time
	LastEmailSent       *time.Time
	IncrementEmailsSent bool
}

func (p Patch) Empty() bool {
	return p.Status == nil && p.Notes == nil && p.InternalNotes == nil && p.ResponseReceived == nil &&
		p.SentAt == nil && p.AcknowledgedAt == nil && p.CompletedAt == nil && p.ActualCompletion == nil &&
		p.LastEmailSent == nil && !p.IncrementEmailsSent
}

// TransitionOptions carries the optional text that accompanies a status
// change.
type TransitionOptions struct {
	Notes         *string
	InternalNotes *string
}

// Filter scopes a listing. UserID is required for user-facing listings.
type Filter struct {
	UserID       string
	Status       *enums.RequestStatus
	Jurisdiction *enums.Jurisdiction
	RequestType  *enums.RequestType
	CompanyID    *string
	DateFrom     *time.Time
	DateTo       *time.Time
}

type ListResult struct {
	Requests   []DeletionRequest `json:"requests"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"totalPages"`
}

type Statistics struct {
	Total       int     `json:"total"`
	Pending     int     `json:"pending"`
	Sent        int     `json:"sent"`
	InProgress  int     `json:"inProgress"`
	Completed   int     `json:"completed"`
	Failed      int     `json:"failed"`
	SuccessRate int     `json:"successRate"`
	TotalCost   float64 `json:"totalCost"`
}

type MonthlyTrend struct {
	Month     string `json:"month"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Pending   int    `json:"pending"`
}

// UserSummary is one user's request counts for the daily summary.
type UserSummary struct {
	UserID     string `json:"userId"`
	Email      string `json:"email"`
	FirstName  string `json:"firstName"`
	Total      int    `json:"total"`
	Pending    int    `json:"pending"`
	Sent       int    `json:"sent"`
	InProgress int    `json:"inProgress"`
	Completed  int    `json:"completed"`
}
