// internal/models/notification.go
package models

import "time"

type NotificationType string

const (
	NotificationSubmitted        NotificationType = "submitted"
	NotificationUnderReview      NotificationType = "under_review"
	NotificationInDiscussion     NotificationType = "in_discussion"
	NotificationInfoRequested    NotificationType = "info_requested"
	NotificationApproved         NotificationType = "approved"
	NotificationRejected         NotificationType = "rejected"
	NotificationWithdrawn        NotificationType = "withdrawn"
	NotificationExpired          NotificationType = "expired"
	NotificationSponsorAssigned  NotificationType = "sponsor_assigned"
	NotificationVoteRequired     NotificationType = "vote_required"
	NotificationVotesComplete    NotificationType = "votes_complete"
	NotificationCommentAdded     NotificationType = "comment_added"
	NotificationCommentReply     NotificationType = "comment_reply"
	NotificationProgramActivated NotificationType = "program_activated"
	NotificationProgramCompleted NotificationType = "program_completed"
)

type Notification struct {
	ID            string           `json:"id"`
	RecipientID   string           `json:"recipientId"`
	ApplicationID *string          `json:"applicationId,omitempty"`
	Type          NotificationType `json:"type"`
	Title         string           `json:"title"`
	Message       string           `json:"message"`
	ActionLink    string           `json:"actionLink,omitempty"`
	IsRead        bool             `json:"isRead"`
	ReadAt        *time.Time       `json:"readAt,omitempty"`
	IsSent        bool             `json:"isSent"`
	SentAt        *time.Time       `json:"sentAt,omitempty"`
	EmailSent     bool             `json:"emailSent"`
	EmailSentAt   *time.Time       `json:"emailSentAt,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	ExpiresAt     *time.Time       `json:"expiresAt,omitempty"`
}

func (n *Notification) Clone() *Notification {
	if n == nil {
		return nil
	}
	c := *n
	c.ApplicationID = cloneString(n.ApplicationID)
	c.ReadAt = CloneTimePtr(n.ReadAt)
	c.SentAt = CloneTimePtr(n.SentAt)
	c.EmailSentAt = CloneTimePtr(n.EmailSentAt)
	c.ExpiresAt = CloneTimePtr(n.ExpiresAt)
	return &c
}

// IsExpired reports whether the notification should be hidden at now.
func (n *Notification) IsExpired(now time.Time) bool {
	return n.ExpiresAt != nil && !now.Before(*n.ExpiresAt)
}
