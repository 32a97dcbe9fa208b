package enums

type Jurisdiction string

const (
	GDPR   Jurisdiction = "GDPR"
	CCPA   Jurisdiction = "CCPA"
	PIPEDA Jurisdiction = "PIPEDA"
	LGPD   Jurisdiction = "LGPD"
)

var Jurisdictions = []Jurisdiction{GDPR, CCPA, PIPEDA, LGPD}

type RequestStatus string

const (
	StatusPending      RequestStatus = "PENDING"
	StatusSent         RequestStatus = "SENT"
	StatusAcknowledged RequestStatus = "ACKNOWLEDGED"
	StatusInProgress   RequestStatus = "IN_PROGRESS"
	StatusCompleted    RequestStatus = "COMPLETED"
	StatusFailed       RequestStatus = "FAILED"
	StatusRejected     RequestStatus = "REJECTED"
	StatusCancelled    RequestStatus = "CANCELLED"
)

var RequestStatuses = []RequestStatus{
	StatusPending,
	StatusSent,
	StatusAcknowledged,
	StatusInProgress,
	StatusCompleted,
	StatusFailed,
	StatusRejected,
	StatusCancelled,
}

// Terminal reports whether no further transition may leave s.
func (s RequestStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

func (s RequestStatus) Cancellable() bool {
	return s == StatusPending || s == StatusSent
}

// Active statuses are the ones a daily summary reports on.
func (s RequestStatus) Active() bool {
	return s == StatusPending || s == StatusSent || s == StatusInProgress
}

type RequestType string

const (
	RequestIndividual RequestType = "INDIVIDUAL"
	RequestBulk       RequestType = "BULK"
)

var RequestTypes = []RequestType{RequestIndividual, RequestBulk}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

var Priorities = []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent}

type TemplateType string

const (
	TemplateInitialRequest TemplateType = "INITIAL_REQUEST"
	TemplateFollowUp       TemplateType = "FOLLOW_UP"
	TemplateReminder       TemplateType = "REMINDER"
	TemplateEscalation     TemplateType = "ESCALATION"
)

var TemplateTypes = []TemplateType{TemplateInitialRequest, TemplateFollowUp, TemplateReminder, TemplateEscalation}

type EmailStatus string

const (
	EmailPending   EmailStatus = "PENDING"
	EmailSent      EmailStatus = "SENT"
	EmailDelivered EmailStatus = "DELIVERED"
	EmailOpened    EmailStatus = "OPENED"
	EmailClicked   EmailStatus = "CLICKED"
	EmailBounced   EmailStatus = "BOUNCED"
	EmailFailed    EmailStatus = "FAILED"
)

var EmailStatuses = []EmailStatus{EmailPending, EmailSent, EmailDelivered, EmailOpened, EmailClicked, EmailBounced, EmailFailed}

type CompanyCategory string

const (
	CategoryDataBroker   CompanyCategory = "DATA_BROKER"
	CategoryCreditBureau CompanyCategory = "CREDIT_BUREAU"
	CategoryPeopleSearch CompanyCategory = "PEOPLE_SEARCH"
	CategoryMarketing    CompanyCategory = "MARKETING"
	CategorySocialMedia  CompanyCategory = "SOCIAL_MEDIA"
	CategoryAdvertising  CompanyCategory = "ADVERTISING"
	CategoryAnalytics    CompanyCategory = "ANALYTICS"
	CategoryOther        CompanyCategory = "OTHER"
)

var CompanyCategories = []CompanyCategory{
	CategoryDataBroker,
	CategoryCreditBureau,
	CategoryPeopleSearch,
	CategoryMarketing,
	CategorySocialMedia,
	CategoryAdvertising,
	CategoryAnalytics,
	CategoryOther,
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}
