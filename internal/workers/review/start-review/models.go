// internal/workers/review/start-review/models.go
package startreview

type Input struct {
	ApplicationID string `json:"applicationId"`
	ActorID       string `json:"actorId"`
}

type Output struct {
	ApplicationID string `json:"applicationId"`
	Status        string `json:"status"`
	VotesRequired int    `json:"votesRequired"`
}
