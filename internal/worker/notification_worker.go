package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bridge/internal/service"
)

// StartNotificationWorker subscribes the chat notifier to bridge events.
// Events are delivered on the publishing goroutine, which is a pool worker
// for webhook and poll observations.
func StartNotificationWorker(notificationService *service.NotificationService, logger *zap.Logger) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
	if logger != nil {
		logger.Info("chat notifications enabled")
	}
}
