package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/moments/internal/events"
	"github.com/spec-kit/moments/internal/observability"
)

func TestNotificationService_RendersLinks(t *testing.T) {
	tests := []struct {
		eventType events.EventType
		subject   string
		link      string
	}{
		{events.EventAccountRegistered, "Confirm Your Account", "https://moments.test/auth/confirm/tok"},
		{events.EventConfirmationRequested, "Confirm Your Account", "https://moments.test/auth/confirm/tok"},
		{events.EventPasswordResetRequested, "Password Reset", "https://moments.test/auth/reset-password/tok"},
		{events.EventEmailChangeRequested, "Change Email Confirm", "https://moments.test/settings/change-email/tok"},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			mailer := &recordingMailer{}
			dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
			NewNotificationService(dispatcher, mailer, "https://moments.test/", zap.NewNop(), nil).RegisterHandlers()

			err := dispatcher.Publish(context.Background(), events.Event{
				Type:    tt.eventType,
				UserID:  "u-1",
				Payload: events.TokenMailPayload{Name: "Grey Li", Email: "test@x.com", Token: "tok"},
			})
			require.NoError(t, err)

			mail, ok := mailer.last()
			require.True(t, ok)
			assert.Equal(t, "test@x.com", mail.to)
			assert.Equal(t, tt.subject, mail.subject)
			assert.Contains(t, mail.body, "Hello Grey Li")
			assert.Contains(t, mail.body, tt.link)
		})
	}
}

func TestNotificationService_FailuresAreLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	mailer := &recordingMailer{err: errors.New("relay down")}
	dispatcher := events.NewInMemoryDispatcher(zap.New(core))
	NewNotificationService(dispatcher, mailer, "http://x", zap.New(core), observability.NewMetrics()).RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventPasswordChanged,
		Payload: events.PasswordChangedPayload{Name: "Grey", Email: "g@x.com", Reset: true},
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("send notification").Len())
}

func TestNotificationService_WrongPayload(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	dispatcher := events.NewInMemoryDispatcher(zap.New(core))
	mailer := &recordingMailer{}
	NewNotificationService(dispatcher, mailer, "http://x", zap.NewNop(), nil).RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventPasswordResetRequested, Payload: "oops"}))
	_, sent := mailer.last()
	assert.False(t, sent)
	assert.Equal(t, 1, logs.FilterMessage("event handler failed").Len())
}
