package worker

import (
	"io"

	"go.uber.org/zap"

	"github.com/spec-kit/moments/internal/service"
)

// StartNotificationWorker subscribes the notification service to account
// events. The returned func releases the mail transport.
func StartNotificationWorker(notifications *service.NotificationService, mailer service.Mailer, logger *zap.Logger) func() {
	if notifications == nil {
		return func() {}
	}
	notifications.RegisterHandlers()
	logger.Info("notification worker started")

	return func() {
		closer, ok := mailer.(io.Closer)
		if !ok {
			return
		}
		if err := closer.Close(); err != nil {
			logger.Warn("close mailer", zap.Error(err))
		}
	}
}
