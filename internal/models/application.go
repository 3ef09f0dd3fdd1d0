// internal/models/application.go
package models

import "time"

type ApplicationStatus string

const (
	StatusDraft            ApplicationStatus = "Draft"
	StatusSubmitted        ApplicationStatus = "Submitted"
	StatusUnderReview      ApplicationStatus = "UnderReview"
	StatusNeedsInformation ApplicationStatus = "NeedsInformation"
	StatusInDiscussion     ApplicationStatus = "InDiscussion"
	StatusApproved         ApplicationStatus = "Approved"
	StatusRejected         ApplicationStatus = "Rejected"
	StatusActive           ApplicationStatus = "Active"
	StatusCompleted        ApplicationStatus = "Completed"
	StatusWithdrawn        ApplicationStatus = "Withdrawn"
	StatusExpired          ApplicationStatus = "Expired"
)

// AllStatuses lists the closed status set in lifecycle order.
func AllStatuses() []ApplicationStatus {
	return []ApplicationStatus{
		StatusDraft, StatusSubmitted, StatusUnderReview, StatusNeedsInformation,
		StatusInDiscussion, StatusApproved, StatusRejected, StatusActive,
		StatusCompleted, StatusWithdrawn, StatusExpired,
	}
}

func (s ApplicationStatus) IsValid() bool {
	for _, known := range AllStatuses() {
		if s == known {
			return true
		}
	}
	return false
}

// IsReviewable reports whether votes and final decisions are legal.
func (s ApplicationStatus) IsReviewable() bool {
	return s == StatusUnderReview || s == StatusInDiscussion
}

// IsTerminal reports whether the review has ended. Approved still admits the
// post-approval program lifecycle.
func (s ApplicationStatus) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusWithdrawn, StatusExpired, StatusCompleted:
		return true
	}
	return false
}

type FinalDecision string

const (
	DecisionNone                 FinalDecision = ""
	DecisionApproved             FinalDecision = "Approved"
	DecisionRejected             FinalDecision = "Rejected"
	DecisionNeedsMoreInformation FinalDecision = "NeedsMoreInformation"
	DecisionDeferred             FinalDecision = "Deferred"
)

// ApplicationContent is the applicant-authored part of an application.
type ApplicationContent struct {
	FirstName              string  `json:"firstName"`
	LastName               string  `json:"lastName"`
	Email                  string  `json:"email"`
	Phone                  string  `json:"phone,omitempty"`
	Address                string  `json:"address,omitempty"`
	FundingType            string  `json:"fundingType"`
	RequestedMonthlyAmount float64 `json:"requestedMonthlyAmount"`
	PersonalStatement      string  `json:"personalStatement"`
	ExpectedBenefits       string  `json:"expectedBenefits"`
	CommitmentStatement    string  `json:"commitmentStatement"`
	CommitmentAcknowledged bool    `json:"commitmentAcknowledged"`
	Signature              string  `json:"signature"`
}

type Application struct {
	ID          string             `json:"id"`
	ApplicantID string             `json:"applicantId"`
	Status      ApplicationStatus  `json:"status"`
	Content     ApplicationContent `json:"content"`

	// VotesRequired is written once, when review starts.
	VotesRequired *int `json:"votesRequired,omitempty"`

	CreatedAt       time.Time  `json:"createdAt"`
	ModifiedAt      *time.Time `json:"modifiedAt,omitempty"`
	SubmittedAt     *time.Time `json:"submittedAt,omitempty"`
	ReviewStartedAt *time.Time `json:"reviewStartedAt,omitempty"`
	DecisionAt      *time.Time `json:"decisionAt,omitempty"`

	FinalDecision         FinalDecision `json:"finalDecision,omitempty"`
	DecisionMessage       string        `json:"decisionMessage,omitempty"`
	DecisionBy            string        `json:"decisionBy,omitempty"`
	ApprovedMonthlyAmount *float64      `json:"approvedMonthlyAmount,omitempty"`
	WithdrawalReason      string        `json:"withdrawalReason,omitempty"`

	SponsorID        string     `json:"sponsorId,omitempty"`
	ProgramStartDate *time.Time `json:"programStartDate,omitempty"`
	ProgramEndDate   *time.Time `json:"programEndDate,omitempty"`
}

// Clone returns a deep copy so stores never share pointers with callers.
func (a *Application) Clone() *Application {
	if a == nil {
		return nil
	}
	c := *a
	c.VotesRequired = CloneIntPtr(a.VotesRequired)
	c.ModifiedAt = CloneTimePtr(a.ModifiedAt)
	c.SubmittedAt = CloneTimePtr(a.SubmittedAt)
	c.ReviewStartedAt = CloneTimePtr(a.ReviewStartedAt)
	c.DecisionAt = CloneTimePtr(a.DecisionAt)
	c.ProgramStartDate = CloneTimePtr(a.ProgramStartDate)
	c.ProgramEndDate = CloneTimePtr(a.ProgramEndDate)
	if a.ApprovedMonthlyAmount != nil {
		v := *a.ApprovedMonthlyAmount
		c.ApprovedMonthlyAmount = &v
	}
	return &c
}

func CloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func CloneIntPtr(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
