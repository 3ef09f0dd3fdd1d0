// internal/review/notify/dispatcher.go
package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "foundation-review/internal/common/errors"
	"foundation-review/internal/common/logger"
	"foundation-review/internal/common/metrics"
	"foundation-review/internal/models"
	"foundation-review/internal/review/store"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Store is the persistence the dispatcher needs.
type Store interface {
	store.NotificationStore
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsersByRole(ctx context.Context, role models.Role, activeOnly bool) ([]*models.User, error)
}

type Config struct {
	EmailEnabled bool
	FromEmail    string
	SMSEnabled   bool
	BaseURL      string
	TTL          time.Duration
}

// Request is one notification for one recipient.
type Request struct {
	RecipientID   string
	Type          models.NotificationType
	Title         string
	Message       string
	ApplicationID string
	// SMS also texts opted-in recipients with a phone number.
	SMS bool
}

type Dispatcher struct {
	config *Config
	store  Store
	ses    SESService
	sns    SNSService
	logger logger.Logger
	now    func() time.Time
}

// NewDispatcher accepts nil SES/SNS clients; the matching channel is then skipped.
func NewDispatcher(config *Config, st Store, sesClient SESService, snsClient SNSService, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		config: config,
		store:  st,
		ses:    sesClient,
		sns:    snsClient,
		logger: log.WithFields(map[string]interface{}{"component": "notify"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Send persists the notification and tries email (and SMS when asked).
// It reports whether the record was stored; channel failures are only logged.
func (d *Dispatcher) Send(ctx context.Context, req Request) bool {
	now := d.now()
	n := &models.Notification{
		RecipientID: req.RecipientID,
		Type:        req.Type,
		Title:       req.Title,
		Message:     req.Message,
		CreatedAt:   now,
	}
	if req.ApplicationID != "" {
		appID := req.ApplicationID
		n.ApplicationID = &appID
		if d.config.BaseURL != "" {
			n.ActionLink = strings.TrimRight(d.config.BaseURL, "/") + "/applications/" + appID
		}
	}
	if d.config.TTL > 0 {
		expires := now.Add(d.config.TTL)
		n.ExpiresAt = &expires
	}

	if err := d.store.CreateNotification(ctx, n); err != nil {
		d.logger.Error("failed to persist notification", map[string]interface{}{
			"error":       err,
			"recipientId": req.RecipientID,
			"type":        string(req.Type),
		})
		metrics.NotificationsTotal.WithLabelValues(string(req.Type), "inbox", "failed").Inc()
		return false
	}
	metrics.NotificationsTotal.WithLabelValues(string(req.Type), "inbox", "sent").Inc()

	emailSent := d.deliverExternal(ctx, req, n)

	if err := d.store.MarkNotificationSent(ctx, n.ID, emailSent, d.now()); err != nil {
		d.logger.Warn("failed to record notification delivery", map[string]interface{}{
			"error":          err,
			"notificationId": n.ID,
		})
	}
	return true
}

func (d *Dispatcher) deliverExternal(ctx context.Context, req Request, n *models.Notification) bool {
	wantEmail := d.config.EmailEnabled && d.ses != nil
	wantSMS := req.SMS && d.config.SMSEnabled && d.sns != nil
	if !wantEmail && !wantSMS {
		return false
	}

	user, err := d.store.GetUser(ctx, req.RecipientID)
	if err != nil {
		d.logger.Warn("recipient not found", map[string]interface{}{
			"recipientId": req.RecipientID,
			"error":       err,
		})
		return false
	}

	emailSent := false
	if wantEmail && user.Email != "" {
		if err := d.sendEmail(ctx, user.Email, n); err != nil {
			d.logger.Error("email send failed", map[string]interface{}{
				"error":       apperrors.NewNotificationSendFailedError("email", err),
				"recipientId": req.RecipientID,
				"type":        string(req.Type),
			})
			metrics.NotificationsTotal.WithLabelValues(string(req.Type), "email", "failed").Inc()
		} else {
			emailSent = true
			metrics.NotificationsTotal.WithLabelValues(string(req.Type), "email", "sent").Inc()
		}
	}

	if wantSMS && user.SMSOptIn && user.Phone != "" {
		if err := d.sendSMS(ctx, user.Phone, n.Title+": "+n.Message); err != nil {
			d.logger.Error("SMS send failed", map[string]interface{}{
				"error":       apperrors.NewNotificationSendFailedError("sms", err),
				"recipientId": req.RecipientID,
			})
			metrics.NotificationsTotal.WithLabelValues(string(req.Type), "sms", "failed").Inc()
		} else {
			metrics.NotificationsTotal.WithLabelValues(string(req.Type), "sms", "sent").Inc()
		}
	}
	return emailSent
}

// SendToRole sends req to every active user with role and returns how many were stored.
func (d *Dispatcher) SendToRole(ctx context.Context, role models.Role, req Request) int {
	users, err := d.store.ListUsersByRole(ctx, role, true)
	if err != nil {
		d.logger.Error("failed to list notification audience", map[string]interface{}{
			"error": err,
			"role":  string(role),
		})
		return 0
	}
	sent := 0
	for _, u := range users {
		r := req
		r.RecipientID = u.ID
		if d.Send(ctx, r) {
			sent++
		}
	}
	return sent
}

func (d *Dispatcher) sendEmail(ctx context.Context, to string, n *models.Notification) error {
	body := n.Message
	if n.ActionLink != "" {
		body += "\n\n" + n.ActionLink
	}
	_, err := d.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(n.Title)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(d.config.FromEmail),
	})
	return err
}

func (d *Dispatcher) sendSMS(ctx context.Context, to, message string) error {
	_, err := d.sns.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
}

// ==========================
// Read tracking
// ==========================

func (d *Dispatcher) List(ctx context.Context, recipientID string, unreadOnly bool) ([]*models.Notification, error) {
	list, err := d.store.ListNotifications(ctx, recipientID, unreadOnly, d.now())
	if err != nil {
		d.logger.Error("failed to list notifications", map[string]interface{}{
			"error":       err,
			"recipientId": recipientID,
		})
		return nil, apperrors.NewInternalError(err)
	}
	return list, nil
}

func (d *Dispatcher) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	list, err := d.List(ctx, recipientID, true)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

func (d *Dispatcher) MarkRead(ctx context.Context, notificationID, recipientID string) apperrors.Result {
	err := d.store.MarkNotificationRead(ctx, notificationID, recipientID, d.now())
	switch {
	case err == nil:
		return apperrors.Succeed()
	case errors.Is(err, store.ErrNotFound):
		return apperrors.FromError(apperrors.NewNotFoundError("notification", notificationID))
	default:
		d.logger.Error("failed to mark notification read", map[string]interface{}{
			"error":          err,
			"notificationId": notificationID,
		})
		return apperrors.FromError(err)
	}
}
