// internal/models/vote.go
package models

import "time"

type VoteDecision string

const (
	VoteApprove       VoteDecision = "Approve"
	VoteReject        VoteDecision = "Reject"
	VoteNeedsMoreInfo VoteDecision = "NeedsMoreInfo"
	VoteAbstain       VoteDecision = "Abstain"
)

func (d VoteDecision) IsValid() bool {
	switch d {
	case VoteApprove, VoteReject, VoteNeedsMoreInfo, VoteAbstain:
		return true
	}
	return false
}

// Vote is unique per (ApplicationID, VoterID).
type Vote struct {
	ID              string       `json:"id"`
	ApplicationID   string       `json:"applicationId"`
	VoterID         string       `json:"voterId"`
	Decision        VoteDecision `json:"decision"`
	Reasoning       string       `json:"reasoning"`
	ConfidenceLevel int          `json:"confidenceLevel"`
	Locked          bool         `json:"locked"`
	VotedAt         time.Time    `json:"votedAt"`
	ModifiedAt      *time.Time   `json:"modifiedAt,omitempty"`
}

func (v *Vote) Clone() *Vote {
	if v == nil {
		return nil
	}
	c := *v
	c.ModifiedAt = CloneTimePtr(v.ModifiedAt)
	return &c
}

// VotingSummary is derived from one consistent read of an application's votes.
type VotingSummary struct {
	ApplicationID      string            `json:"applicationId"`
	Status             ApplicationStatus `json:"status"`
	TotalVotesCast     int               `json:"totalVotesCast"`
	ApprovalVotes      int               `json:"approvalVotes"`
	RejectionVotes     int               `json:"rejectionVotes"`
	NeedsMoreInfoVotes int               `json:"needsMoreInfoVotes"`
	AbstainVotes       int               `json:"abstainVotes"`
	VotesRequired      int               `json:"votesRequired"`
	HasSufficientVotes bool              `json:"hasSufficientVotes"`
	HasAnyRejection    bool              `json:"hasAnyRejection"`
	IsApproved         bool              `json:"isApproved"`
}
