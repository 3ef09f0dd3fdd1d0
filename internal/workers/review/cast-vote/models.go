// internal/workers/review/cast-vote/models.go
package castvote

type Input struct {
	ApplicationID   string `json:"applicationId"`
	VoterID         string `json:"voterId"`
	Decision        string `json:"decision"`
	Reasoning       string `json:"reasoning"`
	ConfidenceLevel int    `json:"confidenceLevel"`
}

type Output struct {
	ApplicationID      string `json:"applicationId"`
	VoterID            string `json:"voterId"`
	Decision           string `json:"decision"`
	TotalVotesCast     int    `json:"totalVotesCast"`
	VotesRequired      int    `json:"votesRequired"`
	HasSufficientVotes bool   `json:"hasSufficientVotes"`
}
