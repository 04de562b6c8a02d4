package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/moments/internal/events"
	"github.com/spec-kit/moments/internal/observability"
)

// NotificationService turns account events into outbound mail.
type NotificationService struct {
	dispatcher events.Dispatcher
	mailer     Mailer
	baseURL    string
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewNotificationService creates the service. baseURL prefixes the links
// placed in messages.
func NewNotificationService(dispatcher events.Dispatcher, mailer Mailer, baseURL string, logger *zap.Logger, metrics *observability.Metrics) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		mailer:     mailer,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventAccountRegistered, n.handleConfirmation)
	n.dispatcher.Subscribe(events.EventConfirmationRequested, n.handleConfirmation)
	n.dispatcher.Subscribe(events.EventPasswordResetRequested, n.handlePasswordReset)
	n.dispatcher.Subscribe(events.EventEmailChangeRequested, n.handleEmailChange)
	n.dispatcher.Subscribe(events.EventPasswordChanged, n.handlePasswordChanged)
}

func (n *NotificationService) handleConfirmation(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.TokenMailPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	body := fmt.Sprintf("Hello %s,\n\nWelcome to Moments! Please visit the link below to confirm your account:\n\n%s\n\n(Please do not reply to this notification, this inbox is not monitored.)\n",
		p.Name, n.link("/auth/confirm/", p.Token))
	n.send(ctx, event, p.Email, "Confirm Your Account", body)
	return nil
}

func (n *NotificationService) handlePasswordReset(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.TokenMailPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	body := fmt.Sprintf("Hello %s,\n\nHere is your password reset link:\n\n%s\n\n(Please do not reply to this notification, this inbox is not monitored.)\n",
		p.Name, n.link("/auth/reset-password/", p.Token))
	n.send(ctx, event, p.Email, "Password Reset", body)
	return nil
}

func (n *NotificationService) handleEmailChange(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.TokenMailPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	body := fmt.Sprintf("Hello %s,\n\nPlease visit the link below to verify your new email address:\n\n%s\n\n(Please do not reply to this notification, this inbox is not monitored.)\n",
		p.Name, n.link("/settings/change-email/", p.Token))
	n.send(ctx, event, p.Email, "Change Email Confirm", body)
	return nil
}

func (n *NotificationService) handlePasswordChanged(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.PasswordChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	action := "changed"
	if p.Reset {
		action = "reset"
	}
	body := fmt.Sprintf("Hello %s,\n\nYour password was %s. If this was not you, reset it at once:\n\n%s\n",
		p.Name, action, n.baseURL+"/auth/forget-password")
	n.send(ctx, event, p.Email, "Password Updated", body)
	return nil
}

func (n *NotificationService) link(path, token string) string {
	return n.baseURL + path + token
}

// send is fire-and-forget; delivery failures never reach the account flow.
func (n *NotificationService) send(ctx context.Context, event events.Event, to, subject, body string) {
	if n.mailer == nil {
		return
	}
	if err := n.mailer.Send(ctx, to, subject, body); err != nil {
		n.metrics.RecordMailFailure(string(event.Type))
		n.logger.Warn("send notification",
			zap.String("event_type", string(event.Type)),
			zap.String("user_id", event.UserID),
			zap.Error(err))
		return
	}
	n.logger.Debug("notification sent",
		zap.String("event_type", string(event.Type)),
		zap.String("user_id", event.UserID))
}
