package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "foundation-review/internal/common/errors"
	"foundation-review/internal/common/metrics"
	"foundation-review/internal/models"
	"foundation-review/internal/review/store"
)

// ==========================
// Applicant operations
// ==========================

// CreateDraft stores a new application in Draft.
func (c *Controller) CreateDraft(ctx context.Context, applicantID string, content models.ApplicationContent) (*models.Application, apperrors.Result) {
	if strings.TrimSpace(applicantID) == "" {
		return nil, apperrors.FromError(apperrors.NewValidationError("applicantId", "is required"))
	}
	app := &models.Application{
		ApplicantID: applicantID,
		Status:      models.StatusDraft,
		Content:     content,
		CreatedAt:   c.now(),
	}
	if err := c.store.CreateApplication(ctx, app); err != nil {
		c.logger.Error("failed to create draft", map[string]interface{}{
			"error":       err,
			"applicantId": applicantID,
		})
		metrics.TransitionsTotal.WithLabelValues("create_draft", metrics.Outcome(false)).Inc()
		return nil, apperrors.FromError(apperrors.NewInternalError(err))
	}
	metrics.TransitionsTotal.WithLabelValues("create_draft", metrics.Outcome(true)).Inc()
	c.reindex(ctx, app)
	if c.stats != nil {
		c.stats.Invalidate(ctx)
	}
	return app, apperrors.Succeed()
}

// UpdateDraft replaces the content while the applicant may still edit it.
func (c *Controller) UpdateDraft(ctx context.Context, applicationID, applicantID string, content models.ApplicationContent) apperrors.Result {
	_, res := c.run(ctx, applicationID, step{
		transition: TransitionEditDraft,
		actorID:    applicantID,
		authorize:  ownedBy(applicantID),
		apply: func(app *models.Application, _ time.Time) *apperrors.ReviewError {
			app.Content = content
			return nil
		},
	})
	return res
}

// Submit validates the content and moves a Draft or NeedsInformation
// application to Submitted.
func (c *Controller) Submit(ctx context.Context, applicationID, applicantID string) apperrors.Result {
	var validationErrs []*apperrors.ReviewError
	app, res := c.run(ctx, applicationID, step{
		transition: TransitionSubmit,
		actorID:    applicantID,
		authorize:  ownedBy(applicantID),
		apply: func(app *models.Application, now time.Time) *apperrors.ReviewError {
			errs, err := validateSubmission(c.validator, app.Content)
			if err != nil {
				return apperrors.NewInternalError(err)
			}
			if len(errs) > 0 {
				validationErrs = errs
				return errs[0]
			}
			app.SubmittedAt = &now
			// a re-submission answers the information request
			if app.FinalDecision == models.DecisionNeedsMoreInformation {
				app.FinalDecision = models.DecisionNone
				app.DecisionMessage = ""
			}
			return nil
		},
	})
	if len(validationErrs) > 0 {
		return apperrors.FromValidation(validationErrs)
	}
	if !res.Succeeded {
		return res
	}

	c.notifyUser(ctx, app.ApplicantID, models.NotificationSubmitted, app, nil)
	c.notifyRole(ctx, models.RoleAdmin, models.NotificationSubmitted, app, nil, false)
	return res
}

// Withdraw is applicant-only. An empty reason becomes the configured default.
func (c *Controller) Withdraw(ctx context.Context, applicationID, applicantID, reason string) apperrors.Result {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = c.config.DefaultWithdrawReason
	}
	app, res := c.run(ctx, applicationID, step{
		transition: TransitionWithdraw,
		actorID:    applicantID,
		authorize:  ownedBy(applicantID),
		apply: func(app *models.Application, _ time.Time) *apperrors.ReviewError {
			app.WithdrawalReason = reason
			return nil
		},
	})
	if !res.Succeeded {
		return res
	}
	c.notifyRole(ctx, models.RoleAdmin, models.NotificationWithdrawn, app, map[string]interface{}{"reason": reason}, false)
	return res
}

// ==========================
// Review operations
// ==========================

// StartReview snapshots the active board size as the quorum.
func (c *Controller) StartReview(ctx context.Context, applicationID, adminID string) apperrors.Result {
	if rerr := c.requireRole(ctx, adminID, models.RoleAdmin); rerr != nil {
		return apperrors.FromError(rerr)
	}

	boardSize, err := c.store.CountActiveBoardMembers(ctx)
	if err != nil {
		c.logger.Error("failed to count board members", map[string]interface{}{
			"error":         err,
			"applicationId": applicationID,
		})
		return apperrors.FromError(apperrors.NewInternalError(err))
	}

	app, res := c.run(ctx, applicationID, step{
		transition: TransitionStartReview,
		actorID:    adminID,
		apply: func(app *models.Application, now time.Time) *apperrors.ReviewError {
			if app.VotesRequired == nil {
				if boardSize == 0 {
					return apperrors.NewStateError("no active board members to review the application")
				}
				required := boardSize
				app.VotesRequired = &required
			}
			if app.ReviewStartedAt == nil {
				app.ReviewStartedAt = &now
			}
			return nil
		},
	})
	if !res.Succeeded {
		return res
	}

	c.notifyUser(ctx, app.ApplicantID, models.NotificationUnderReview, app, nil)
	c.notifyRole(ctx, models.RoleBoardMember, models.NotificationVoteRequired, app,
		map[string]interface{}{"votesRequired": *app.VotesRequired}, true)
	return res
}

// OpenDiscussion moves an application under review into board discussion.
func (c *Controller) OpenDiscussion(ctx context.Context, applicationID, actorID string) apperrors.Result {
	if rerr := c.requireRole(ctx, actorID, models.RoleAdmin, models.RoleBoardMember); rerr != nil {
		return apperrors.FromError(rerr)
	}
	app, res := c.run(ctx, applicationID, step{
		transition: TransitionOpenDiscussion,
		actorID:    actorID,
	})
	if !res.Succeeded {
		return res
	}
	c.notifyRole(ctx, models.RoleBoardMember, models.NotificationInDiscussion, app, nil, false)
	return res
}

// RequestInformation records the request as an information-request comment
// in the same write as the status change.
func (c *Controller) RequestInformation(ctx context.Context, applicationID, requesterID, request string) apperrors.Result {
	request = strings.TrimSpace(request)
	if request == "" {
		return apperrors.FromError(apperrors.NewValidationError("request", "is required"))
	}
	if rerr := c.requireRole(ctx, requesterID, models.RoleAdmin, models.RoleBoardMember); rerr != nil {
		return apperrors.FromError(rerr)
	}

	app, res := c.run(ctx, applicationID, step{
		transition: TransitionRequestInformation,
		actorID:    requesterID,
		apply: func(app *models.Application, _ time.Time) *apperrors.ReviewError {
			app.FinalDecision = models.DecisionNeedsMoreInformation
			app.DecisionMessage = request
			return nil
		},
		opts: func(app *models.Application, now time.Time) store.TransitionOptions {
			return store.TransitionOptions{Comment: &models.Comment{
				ApplicationID:        app.ID,
				AuthorID:             requesterID,
				Content:              request,
				IsInformationRequest: true,
				CreatedAt:            now,
			}}
		},
	})
	if !res.Succeeded {
		return res
	}
	c.notifyUser(ctx, app.ApplicantID, models.NotificationInfoRequested, app, map[string]interface{}{"request": request})
	return res
}

// ApproveInput carries the admin's final approval.
type ApproveInput struct {
	ApplicationID         string
	AdminID               string
	Message               string
	ApprovedMonthlyAmount *float64
	SponsorID             string
}

// Approve records the final decision and locks every vote. The voting
// summary is advisory; the admin decides.
func (c *Controller) Approve(ctx context.Context, in ApproveInput) apperrors.Result {
	if in.ApprovedMonthlyAmount != nil && *in.ApprovedMonthlyAmount < 0 {
		return apperrors.FromError(apperrors.NewValidationError("approvedMonthlyAmount", "must not be negative"))
	}
	if rerr := c.requireRole(ctx, in.AdminID, models.RoleAdmin); rerr != nil {
		return apperrors.FromError(rerr)
	}
	if in.SponsorID != "" {
		if rerr := c.requireSponsor(ctx, in.SponsorID); rerr != nil {
			return apperrors.FromError(rerr)
		}
	}

	app, res := c.run(ctx, in.ApplicationID, step{
		transition: TransitionApprove,
		actorID:    in.AdminID,
		apply: func(app *models.Application, now time.Time) *apperrors.ReviewError {
			app.FinalDecision = models.DecisionApproved
			app.DecisionAt = &now
			app.DecisionBy = in.AdminID
			app.DecisionMessage = strings.TrimSpace(in.Message)
			if in.ApprovedMonthlyAmount != nil {
				amount := *in.ApprovedMonthlyAmount
				app.ApprovedMonthlyAmount = &amount
			}
			if in.SponsorID != "" {
				app.SponsorID = in.SponsorID
			}
			return nil
		},
		opts: func(*models.Application, time.Time) store.TransitionOptions {
			return store.TransitionOptions{LockVotes: true}
		},
	})
	if !res.Succeeded {
		return res
	}

	c.notifyUser(ctx, app.ApplicantID, models.NotificationApproved, app, map[string]interface{}{"message": app.DecisionMessage})
	if app.SponsorID != "" {
		c.notifyUser(ctx, app.SponsorID, models.NotificationSponsorAssigned, app, map[string]interface{}{"sponsorId": app.SponsorID})
	}
	return res
}

// Reject requires a reason and locks every vote.
func (c *Controller) Reject(ctx context.Context, applicationID, adminID, reason string) apperrors.Result {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return apperrors.FromError(apperrors.NewValidationError("reason", "is required"))
	}
	if rerr := c.requireRole(ctx, adminID, models.RoleAdmin); rerr != nil {
		return apperrors.FromError(rerr)
	}

	app, res := c.run(ctx, applicationID, step{
		transition: TransitionReject,
		actorID:    adminID,
		apply: func(app *models.Application, now time.Time) *apperrors.ReviewError {
			app.FinalDecision = models.DecisionRejected
			app.DecisionAt = &now
			app.DecisionBy = adminID
			app.DecisionMessage = reason
			return nil
		},
		opts: func(*models.Application, time.Time) store.TransitionOptions {
			return store.TransitionOptions{LockVotes: true}
		},
	})
	if !res.Succeeded {
		return res
	}
	c.notifyUser(ctx, app.ApplicantID, models.NotificationRejected, app, map[string]interface{}{"reason": reason})
	return res
}

// Expire closes an application whose information request went unanswered.
func (c *Controller) Expire(ctx context.Context, applicationID, adminID string) apperrors.Result {
	if rerr := c.requireRole(ctx, adminID, models.RoleAdmin); rerr != nil {
		return apperrors.FromError(rerr)
	}
	app, res := c.run(ctx, applicationID, step{
		transition: TransitionExpire,
		actorID:    adminID,
	})
	if !res.Succeeded {
		return res
	}
	c.notifyUser(ctx, app.ApplicantID, models.NotificationExpired, app, nil)
	return res
}

// ==========================
// Program lifecycle
// ==========================

// AssignSponsor is allowed once the application is Approved.
func (c *Controller) AssignSponsor(ctx context.Context, applicationID, adminID, sponsorID string) apperrors.Result {
	if strings.TrimSpace(sponsorID) == "" {
		return apperrors.FromError(apperrors.NewValidationError("sponsorId", "is required"))
	}
	if rerr := c.requireRole(ctx, adminID, models.RoleAdmin); rerr != nil {
		return apperrors.FromError(rerr)
	}
	if rerr := c.requireSponsor(ctx, sponsorID); rerr != nil {
		return apperrors.FromError(rerr)
	}

	app, res := c.run(ctx, applicationID, step{
		transition: TransitionAssignSponsor,
		actorID:    adminID,
		apply: func(app *models.Application, _ time.Time) *apperrors.ReviewError {
			app.SponsorID = sponsorID
			return nil
		},
	})
	if !res.Succeeded {
		return res
	}
	data := map[string]interface{}{"sponsorId": sponsorID}
	c.notifyUser(ctx, app.ApplicantID, models.NotificationSponsorAssigned, app, data)
	c.notifyUser(ctx, sponsorID, models.NotificationSponsorAssigned, app, data)
	return res
}

// Activate starts the funded program. A zero start means now.
func (c *Controller) Activate(ctx context.Context, applicationID, adminID string, start time.Time, end *time.Time) apperrors.Result {
	if rerr := c.requireRole(ctx, adminID, models.RoleAdmin); rerr != nil {
		return apperrors.FromError(rerr)
	}
	app, res := c.run(ctx, applicationID, step{
		transition: TransitionActivate,
		actorID:    adminID,
		apply: func(app *models.Application, now time.Time) *apperrors.ReviewError {
			if app.SponsorID == "" {
				return apperrors.NewStateError("a sponsor must be assigned before the program starts")
			}
			if start.IsZero() {
				start = now
			}
			if end != nil && !end.After(start) {
				return apperrors.NewValidationError("programEndDate", "must be after the program start date")
			}
			s := start
			app.ProgramStartDate = &s
			app.ProgramEndDate = models.CloneTimePtr(end)
			return nil
		},
	})
	if !res.Succeeded {
		return res
	}
	c.notifyUser(ctx, app.ApplicantID, models.NotificationProgramActivated, app, nil)
	c.notifyUser(ctx, app.SponsorID, models.NotificationProgramActivated, app, nil)
	return res
}

// Complete closes an active program. A nil end means now.
func (c *Controller) Complete(ctx context.Context, applicationID, adminID string, end *time.Time) apperrors.Result {
	if rerr := c.requireRole(ctx, adminID, models.RoleAdmin); rerr != nil {
		return apperrors.FromError(rerr)
	}
	app, res := c.run(ctx, applicationID, step{
		transition: TransitionComplete,
		actorID:    adminID,
		apply: func(app *models.Application, now time.Time) *apperrors.ReviewError {
			finished := now
			if end != nil {
				finished = *end
			}
			if app.ProgramStartDate != nil && finished.Before(*app.ProgramStartDate) {
				return apperrors.NewValidationError("programEndDate", "must not be before the program start date")
			}
			app.ProgramEndDate = &finished
			return nil
		},
	})
	if !res.Succeeded {
		return res
	}
	c.notifyUser(ctx, app.ApplicantID, models.NotificationProgramCompleted, app, nil)
	c.notifyUser(ctx, app.SponsorID, models.NotificationProgramCompleted, app, nil)
	return res
}

func (c *Controller) requireSponsor(ctx context.Context, sponsorID string) *apperrors.ReviewError {
	user, err := c.store.GetUser(ctx, sponsorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NewValidationError("sponsorId", "must reference an active sponsor")
		}
		return apperrors.NewInternalError(err)
	}
	if user.Role != models.RoleSponsor || !user.IsActive {
		return apperrors.NewValidationError("sponsorId", "must reference an active sponsor")
	}
	return nil
}
