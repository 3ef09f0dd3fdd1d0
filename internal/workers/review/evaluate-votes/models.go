// internal/workers/review/evaluate-votes/models.go
package evaluatevotes

type Input struct {
	ApplicationID string `json:"applicationId"`
}

// Output is published as process variables so gateways can branch on
// hasSufficientVotes and isApproved.
type Output struct {
	ApplicationID      string `json:"applicationId"`
	Status             string `json:"status"`
	TotalVotesCast     int    `json:"totalVotesCast"`
	ApprovalVotes      int    `json:"approvalVotes"`
	RejectionVotes     int    `json:"rejectionVotes"`
	NeedsMoreInfoVotes int    `json:"needsMoreInfoVotes"`
	AbstainVotes       int    `json:"abstainVotes"`
	VotesRequired      int    `json:"votesRequired"`
	HasSufficientVotes bool   `json:"hasSufficientVotes"`
	HasAnyRejection    bool   `json:"hasAnyRejection"`
	IsApproved         bool   `json:"isApproved"`
	Recommendation     string `json:"recommendation"`
}

// Recommendations
const (
	RecommendApprove = "approve"
	RecommendReject  = "reject"
	RecommendWait    = "wait"
)
