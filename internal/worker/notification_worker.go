package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/factoryops/jobdesk-permit/internal/service"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// StartExpiryWorker restores timers for running permissions and launches the
// sweep loop. The returned channel closes when the loop exits after ctx is done.
func StartExpiryWorker(ctx context.Context, scheduler *ExpiryScheduler, interval time.Duration, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	if err := scheduler.Restore(ctx); err != nil {
		logger.Error("failed to restore expiry timers", zap.Error(err))
	}
	go func() {
		defer close(done)
		scheduler.Run(ctx, interval)
	}()
	return done
}
