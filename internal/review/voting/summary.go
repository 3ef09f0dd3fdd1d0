// Package voting records board votes and derives the voting summary.
package voting

import "foundation-review/internal/models"

// Summarize tallies one consistent read of an application's votes.
// Abstentions are counted separately and never count toward the quorum.
func Summarize(app *models.Application, votes []*models.Vote) models.VotingSummary {
	s := models.VotingSummary{
		ApplicationID: app.ID,
		Status:        app.Status,
	}
	for _, v := range votes {
		switch v.Decision {
		case models.VoteApprove:
			s.ApprovalVotes++
		case models.VoteReject:
			s.RejectionVotes++
		case models.VoteNeedsMoreInfo:
			s.NeedsMoreInfoVotes++
		case models.VoteAbstain:
			s.AbstainVotes++
			continue
		}
		s.TotalVotesCast++
	}

	quorumSet := app.VotesRequired != nil
	if quorumSet {
		s.VotesRequired = *app.VotesRequired
	}
	s.HasAnyRejection = s.RejectionVotes > 0
	s.HasSufficientVotes = quorumSet && app.Status.IsReviewable() && s.TotalVotesCast >= s.VotesRequired
	// one rejection vetoes, however many approvals there are
	s.IsApproved = quorumSet && s.ApprovalVotes >= s.VotesRequired && !s.HasAnyRejection
	return s
}
