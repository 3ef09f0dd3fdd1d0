// internal/workers/review/record-decision/models.go
package recorddecision

type Input struct {
	ApplicationID         string   `json:"applicationId"`
	AdminID               string   `json:"adminId"`
	Decision              string   `json:"decision"` // "approve" or "reject"
	Message               string   `json:"message,omitempty"`
	ApprovedMonthlyAmount *float64 `json:"approvedMonthlyAmount,omitempty"`
	SponsorID             string   `json:"sponsorId,omitempty"`
}

type Output struct {
	ApplicationID string `json:"applicationId"`
	Status        string `json:"status"`
	DecidedBy     string `json:"decidedBy"`
	DecidedAt     string `json:"decidedAt"` // ISO 8601
}

// Decisions
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)
