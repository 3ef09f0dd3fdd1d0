// Package workflow owns the application status state machine.
package workflow

import (
	"fmt"
	"strings"

	apperrors "foundation-review/internal/common/errors"
	"foundation-review/internal/models"
)

// Transition names a requested change to an application.
type Transition string

const (
	TransitionEditDraft          Transition = "edit_draft"
	TransitionSubmit             Transition = "submit"
	TransitionStartReview        Transition = "start_review"
	TransitionOpenDiscussion     Transition = "open_discussion"
	TransitionRequestInformation Transition = "request_information"
	TransitionApprove            Transition = "approve"
	TransitionReject             Transition = "reject"
	TransitionWithdraw           Transition = "withdraw"
	TransitionActivate           Transition = "activate"
	TransitionComplete           Transition = "complete"
	TransitionExpire             Transition = "expire"
	TransitionAssignSponsor      Transition = "assign_sponsor"
)

type rule struct {
	from []models.ApplicationStatus
	// to is empty for transitions that leave the status unchanged.
	to     models.ApplicationStatus
	action string
}

var transitionTable = map[Transition]rule{
	TransitionEditDraft: {
		from:   []models.ApplicationStatus{models.StatusDraft, models.StatusNeedsInformation},
		action: "edit the application",
	},
	TransitionSubmit: {
		from:   []models.ApplicationStatus{models.StatusDraft, models.StatusNeedsInformation},
		to:     models.StatusSubmitted,
		action: "submit",
	},
	TransitionStartReview: {
		from:   []models.ApplicationStatus{models.StatusSubmitted},
		to:     models.StatusUnderReview,
		action: "start review",
	},
	TransitionOpenDiscussion: {
		from:   []models.ApplicationStatus{models.StatusUnderReview},
		to:     models.StatusInDiscussion,
		action: "open discussion",
	},
	TransitionRequestInformation: {
		from:   []models.ApplicationStatus{models.StatusUnderReview, models.StatusInDiscussion},
		to:     models.StatusNeedsInformation,
		action: "request information",
	},
	TransitionApprove: {
		from:   []models.ApplicationStatus{models.StatusUnderReview, models.StatusInDiscussion},
		to:     models.StatusApproved,
		action: "approve",
	},
	TransitionReject: {
		from:   []models.ApplicationStatus{models.StatusUnderReview, models.StatusInDiscussion},
		to:     models.StatusRejected,
		action: "reject",
	},
	TransitionWithdraw: {
		from:   []models.ApplicationStatus{models.StatusSubmitted, models.StatusUnderReview, models.StatusInDiscussion},
		to:     models.StatusWithdrawn,
		action: "withdraw",
	},
	TransitionActivate: {
		from:   []models.ApplicationStatus{models.StatusApproved},
		to:     models.StatusActive,
		action: "activate the program",
	},
	TransitionComplete: {
		from:   []models.ApplicationStatus{models.StatusActive},
		to:     models.StatusCompleted,
		action: "complete the program",
	},
	TransitionExpire: {
		from:   []models.ApplicationStatus{models.StatusNeedsInformation},
		to:     models.StatusExpired,
		action: "expire",
	},
	TransitionAssignSponsor: {
		from:   []models.ApplicationStatus{models.StatusApproved, models.StatusActive},
		action: "assign a sponsor",
	},
}

// Check decides whether t is legal from current and returns the resulting status.
func Check(current models.ApplicationStatus, t Transition) (models.ApplicationStatus, *apperrors.ReviewError) {
	r, ok := transitionTable[t]
	if !ok {
		return current, apperrors.NewStateError(fmt.Sprintf("unknown transition %q", t))
	}
	for _, s := range r.from {
		if s == current {
			if r.to == "" {
				return current, nil
			}
			return r.to, nil
		}
	}
	if isDecision(t) && (current == models.StatusApproved || current == models.StatusRejected) {
		return current, apperrors.NewStateError("application already decided")
	}
	return current, apperrors.NewStateError(fmt.Sprintf(
		"must be in %s status to %s (current status: %s)", joinStatuses(r.from), r.action, current,
	))
}

// Allowed lists the transitions legal from current, in table order.
func Allowed(current models.ApplicationStatus) []Transition {
	out := make([]Transition, 0)
	for _, t := range orderedTransitions {
		if _, err := Check(current, t); err == nil {
			out = append(out, t)
		}
	}
	return out
}

var orderedTransitions = []Transition{
	TransitionEditDraft, TransitionSubmit, TransitionStartReview, TransitionOpenDiscussion,
	TransitionRequestInformation, TransitionApprove, TransitionReject, TransitionWithdraw,
	TransitionActivate, TransitionComplete, TransitionExpire, TransitionAssignSponsor,
}

func isDecision(t Transition) bool {
	return t == TransitionApprove || t == TransitionReject
}

func joinStatuses(statuses []models.ApplicationStatus) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	if len(parts) <= 1 {
		return strings.Join(parts, "")
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " or " + parts[len(parts)-1]
}
