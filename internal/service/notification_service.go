package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/factoryops/jobdesk-permit/internal/domain"
	"github.com/factoryops/jobdesk-permit/internal/events"
)

// Severity grades a notification for the presentation layer.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
)

// Notifier is a fire-and-forget sink for user-facing notifications.
type Notifier interface {
	Notify(ctx context.Context, severity Severity, title, message string)
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier builds the default sink.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, severity Severity, title, message string) {
	n.logger.Info("notification",
		zap.String("severity", string(severity)),
		zap.String("title", title),
		zap.String("message", message))
}

// NotificationService turns domain events into notifications.
type NotificationService struct {
	dispatcher events.Dispatcher
	notifier   Notifier
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, notifier Notifier, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventPermissionStarted, n.handlePermissionStarted)
	n.dispatcher.Subscribe(events.EventPermissionEnded, n.handlePermissionEnded)
	n.dispatcher.Subscribe(events.EventStaffLoggedIn, n.handleStaffLoggedIn)
	n.dispatcher.Subscribe(events.EventStaffLoggedOut, n.handleStaffLoggedOut)
	n.dispatcher.Subscribe(events.EventQuotaReset, n.handleQuotaReset)
}

func (n *NotificationService) handlePermissionStarted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.PermissionStartedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	p := payload.Permission
	n.notifier.Notify(ctx, SeveritySuccess, "Izin Dimulai",
		fmt.Sprintf("%s izin %s di %s selama %d menit", p.StaffName, p.Kind, p.JobdeskName, p.DurationMinutes))
	return nil
}

func (n *NotificationService) handlePermissionEnded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.PermissionEndedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	p := payload.Permission
	switch payload.Reason {
	case domain.EndReasonTimeout:
		n.notifier.Notify(ctx, SeverityWarning, "Waktu Habis",
			fmt.Sprintf("Izin %s di %s telah berakhir otomatis", p.StaffName, p.JobdeskName))
	case domain.EndReasonForcedLogout:
		n.notifier.Notify(ctx, SeverityInfo, "Izin Diakhiri",
			fmt.Sprintf("Izin %s di %s diakhiri karena logout", p.StaffName, p.JobdeskName))
	default:
		n.notifier.Notify(ctx, SeverityInfo, "Izin Selesai",
			fmt.Sprintf("%s kembali ke %s", p.StaffName, p.JobdeskName))
	}
	return nil
}

func (n *NotificationService) handleStaffLoggedIn(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.StaffSessionPayload)
	n.notifier.Notify(ctx, SeveritySuccess, "Login Berhasil", fmt.Sprintf("Selamat datang %s!", payload.DisplayName))
	return nil
}

func (n *NotificationService) handleStaffLoggedOut(ctx context.Context, event events.Event) error {
	n.notifier.Notify(ctx, SeverityInfo, "Logout", "Anda telah logout dari sistem")
	return nil
}

func (n *NotificationService) handleQuotaReset(ctx context.Context, event events.Event) error {
	n.logger.Debug("quota reset", zap.String("staff_id", event.StaffID), zap.Any("payload", event.Payload))
	return nil
}
