// internal/models/statistics.go
package models

import "time"

type ApplicationStatistics struct {
	Total             int       `json:"total"`
	PendingReview     int       `json:"pendingReview"`
	UnderReview       int       `json:"underReview"`
	NeedsInformation  int       `json:"needsInformation"`
	Approved          int       `json:"approved"`
	Rejected          int       `json:"rejected"`
	Active            int       `json:"active"`
	Completed         int       `json:"completed"`
	Withdrawn         int       `json:"withdrawn"`
	ApprovalRate      float64   `json:"approvalRate"`
	AverageReviewDays float64   `json:"averageReviewDays"`
	GeneratedAt       time.Time `json:"generatedAt"`
}

type BoardMemberStatistics struct {
	VoterID                string  `json:"voterId"`
	TotalVotesCast         int     `json:"totalVotesCast"`
	ApprovalsGiven         int     `json:"approvalsGiven"`
	RejectionsGiven        int     `json:"rejectionsGiven"`
	NeedsMoreInfoGiven     int     `json:"needsMoreInfoGiven"`
	AbstentionsGiven       int     `json:"abstentionsGiven"`
	AverageConfidenceLevel float64 `json:"averageConfidenceLevel"`
	ParticipationRate      float64 `json:"participationRate"`
}
