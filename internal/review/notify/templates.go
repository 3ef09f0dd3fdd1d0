// internal/review/notify/templates.go
package notify

import (
	"fmt"
	"strings"

	"foundation-review/internal/models"
)

type template struct {
	subject string
	body    string
}

var templates = map[models.NotificationType]template{
	models.NotificationSubmitted: {
		subject: "Application submitted",
		body:    "Your application {{applicationId}} has been submitted and is waiting for review.",
	},
	models.NotificationUnderReview: {
		subject: "Application under review",
		body:    "The board has started reviewing application {{applicationId}}.",
	},
	models.NotificationVoteRequired: {
		subject: "Your vote is needed",
		body:    "Application {{applicationId}} is open for board review. {{votesRequired}} votes are required.",
	},
	models.NotificationInDiscussion: {
		subject: "Application moved to discussion",
		body:    "Application {{applicationId}} is now in board discussion.",
	},
	models.NotificationInfoRequested: {
		subject: "More information needed",
		body:    "The board needs more information about application {{applicationId}}: {{request}}",
	},
	models.NotificationApproved: {
		subject: "Application approved",
		body:    "Congratulations, application {{applicationId}} was approved. {{message}}",
	},
	models.NotificationRejected: {
		subject: "Application decision",
		body:    "Application {{applicationId}} was not approved. Reason: {{reason}}",
	},
	models.NotificationWithdrawn: {
		subject: "Application withdrawn",
		body:    "Application {{applicationId}} was withdrawn by the applicant. Reason: {{reason}}",
	},
	models.NotificationExpired: {
		subject: "Application expired",
		body:    "Application {{applicationId}} expired because the requested information was not provided.",
	},
	models.NotificationSponsorAssigned: {
		subject: "Sponsor assigned",
		body:    "Sponsor {{sponsorId}} has been assigned to application {{applicationId}}.",
	},
	models.NotificationVotesComplete: {
		subject: "Voting quorum reached",
		body:    "Application {{applicationId}} has {{totalVotesCast}} of {{votesRequired}} votes ({{approvalVotes}} approve, {{rejectionVotes}} reject).",
	},
	models.NotificationCommentAdded: {
		subject: "New comment on your application",
		body:    "A new comment was posted on application {{applicationId}}.",
	},
	models.NotificationCommentReply: {
		subject: "New reply to your comment",
		body:    "Someone replied to your comment on application {{applicationId}}.",
	},
	models.NotificationProgramActivated: {
		subject: "Program started",
		body:    "The program for application {{applicationId}} is now active.",
	},
	models.NotificationProgramCompleted: {
		subject: "Program completed",
		body:    "The program for application {{applicationId}} has been completed.",
	},
}

// Compose renders the title and message for a notification type.
func Compose(t models.NotificationType, data map[string]interface{}) (string, string) {
	tmpl, ok := templates[t]
	if !ok {
		return string(t), renderTemplate("Update on application {{applicationId}}.", data)
	}
	return renderTemplate(tmpl.subject, data), strings.TrimSpace(renderTemplate(tmpl.body, data))
}

// renderTemplate replaces {{key}} placeholders in one pass over tmpl and drops
// unknown ones. Substituted values are copied verbatim.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	var b strings.Builder
	rest := tmpl
	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end == -1 {
			break
		}
		b.WriteString(rest[:start])
		key := rest[start+2 : start+end]
		if v, ok := data[key]; ok && v != nil {
			b.WriteString(fmt.Sprintf("%v", v))
		}
		rest = rest[start+end+2:]
	}
	b.WriteString(rest)
	return b.String()
}
