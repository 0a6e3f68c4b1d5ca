package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/factoryops/jobdesk-permit/internal/domain"
	"github.com/factoryops/jobdesk-permit/internal/events"
	"github.com/factoryops/jobdesk-permit/internal/observability"
	"github.com/factoryops/jobdesk-permit/internal/service"
)

// retryDelay is how long a timer waits before retrying a failed expiry.
const retryDelay = 5 * time.Second

// Engine is the part of the permission engine the scheduler drives.
type Engine interface {
	Now() time.Time
	ExpireIfDue(ctx context.Context, permissionID string) (*domain.PermissionRecord, time.Duration, error)
	ExpireDue(ctx context.Context) ([]domain.PermissionRecord, error)
	Sweep(ctx context.Context) (service.SweepResult, error)
	ActiveBoard(ctx context.Context) ([]service.ActiveEntry, error)
}

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it via SystemTimers.
type AfterFunc func(d time.Duration, f func()) Timer

// SystemTimers schedules callbacks on the runtime timer heap.
func SystemTimers(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// ExpiryScheduler keeps one timer per running permission and ends it with
// reason timeout at its deadline. Timers are armed from permission_started
// events and disarmed by permission_ended events. A periodic sweep covers
// day rollover and any deadline a timer missed.
type ExpiryScheduler struct {
	engine  Engine
	after   AfterFunc
	metrics *observability.Metrics
	logger  *zap.Logger
	ctx     context.Context

	mu     sync.Mutex
	timers map[string]Timer
}

// SchedulerDependencies bundles collaborators for the scheduler.
type SchedulerDependencies struct {
	Engine     Engine
	Dispatcher events.Dispatcher
	// AfterFunc defaults to SystemTimers.
	AfterFunc AfterFunc
	Metrics   *observability.Metrics
	Logger    *zap.Logger
}

// NewExpiryScheduler builds the scheduler and subscribes it to permission events.
func NewExpiryScheduler(ctx context.Context, deps SchedulerDependencies) *ExpiryScheduler {
	after := deps.AfterFunc
	if after == nil {
		after = SystemTimers
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ExpiryScheduler{
		engine:  deps.Engine,
		after:   after,
		metrics: deps.Metrics,
		logger:  logger,
		ctx:     ctx,
		timers:  make(map[string]Timer),
	}
	if deps.Dispatcher != nil {
		deps.Dispatcher.Subscribe(events.EventPermissionStarted, s.handleStarted)
		deps.Dispatcher.Subscribe(events.EventPermissionEnded, s.handleEnded)
	}
	return s
}

// Restore arms timers for permissions that were running before a restart.
func (s *ExpiryScheduler) Restore(ctx context.Context) error {
	board, err := s.engine.ActiveBoard(ctx)
	if err != nil {
		return err
	}
	for _, entry := range board {
		s.Schedule(entry.PermissionRecord)
	}
	s.metrics.SetActive(len(board))
	s.logger.Info("expiry timers restored", zap.Int("count", len(board)))
	return nil
}

// Schedule arms (or re-arms) the timer of record.
func (s *ExpiryScheduler) Schedule(record domain.PermissionRecord) {
	if record.Ended {
		return
	}
	s.arm(record.ID, record.Deadline().Sub(s.engine.Now()))
}

// Cancel disarms the timer of permissionID, if any.
func (s *ExpiryScheduler) Cancel(permissionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[permissionID]; ok {
		timer.Stop()
		delete(s.timers, permissionID)
	}
}

// Pending returns the number of armed timers.
func (s *ExpiryScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Run sweeps every interval until ctx is cancelled.
func (s *ExpiryScheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *ExpiryScheduler) tick(ctx context.Context) {
	if _, err := s.engine.Sweep(ctx); err != nil {
		s.logger.Error("sweep failed", zap.Error(err))
	}
	ended, err := s.engine.ExpireDue(ctx)
	if err != nil {
		s.logger.Error("expiry poll failed", zap.Error(err))
	}
	if len(ended) > 0 {
		s.logger.Warn("permissions expired by poll", zap.Int("count", len(ended)))
	}
}

func (s *ExpiryScheduler) arm(permissionID string, d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[permissionID]; ok {
		timer.Stop()
	}
	s.timers[permissionID] = s.after(d, func() { s.fire(permissionID) })
}

func (s *ExpiryScheduler) fire(permissionID string) {
	s.mu.Lock()
	delete(s.timers, permissionID)
	s.mu.Unlock()

	ended, left, err := s.engine.ExpireIfDue(s.ctx, permissionID)
	switch {
	case err != nil:
		s.logger.Error("expiry failed", zap.String("permission_id", permissionID), zap.Error(err))
		if s.ctx.Err() == nil {
			s.arm(permissionID, retryDelay)
		}
	case ended != nil:
		s.logger.Debug("permission expired", zap.String("permission_id", permissionID))
	case left > 0:
		s.arm(permissionID, left)
	}
}

func (s *ExpiryScheduler) handleStarted(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.PermissionStartedPayload)
	if !ok {
		return nil
	}
	s.Schedule(payload.Permission)
	return nil
}

func (s *ExpiryScheduler) handleEnded(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.PermissionEndedPayload)
	if !ok {
		return nil
	}
	s.Cancel(payload.Permission.ID)
	return nil
}
