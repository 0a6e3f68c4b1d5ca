package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/factoryops/jobdesk-permit/internal/clock"
	"github.com/factoryops/jobdesk-permit/internal/domain"
	"github.com/factoryops/jobdesk-permit/internal/repository"
	apperrors "github.com/factoryops/jobdesk-permit/pkg/util/errorutil"
)

// PolicyReader returns the policy in force. Implementations must not cache:
// every decision reads the current document.
type PolicyReader interface {
	Current(ctx context.Context) (domain.PolicyConfig, error)
}

// PolicyService reads and updates the global policy document.
type PolicyService struct {
	policies repository.PolicyRepository
	fallback domain.PolicyConfig
	clock    clock.Clock
	logger   *zap.Logger
}

// PolicyDependencies bundles collaborators for the policy service.
type PolicyDependencies struct {
	PolicyRepo repository.PolicyRepository
	// Fallback is served until a policy has been stored.
	Fallback domain.PolicyConfig
	Clock    clock.Clock
	Logger   *zap.Logger
}

// NewPolicyService constructs the service.
func NewPolicyService(deps PolicyDependencies) *PolicyService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PolicyService{
		policies: deps.PolicyRepo,
		fallback: deps.Fallback,
		clock:    deps.Clock,
		logger:   logger,
	}
}

// Current implements PolicyReader.
func (s *PolicyService) Current(ctx context.Context) (domain.PolicyConfig, error) {
	policy, err := s.policies.Get(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return s.fallback, nil
	}
	if err != nil {
		return domain.PolicyConfig{}, apperrors.NewStorageError(err)
	}
	return policy, nil
}

// EnsureStored persists the fallback policy when nothing was saved yet.
func (s *PolicyService) EnsureStored(ctx context.Context) error {
	_, err := s.policies.Get(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewStorageError(err)
	}
	policy := s.fallback
	policy.UpdatedAt = s.clock.Now()
	if err := s.policies.Save(ctx, policy); err != nil {
		return apperrors.NewStorageError(err)
	}
	s.logger.Info("initial policy stored")
	return nil
}

// Update validates and replaces the policy. Last write wins.
func (s *PolicyService) Update(ctx context.Context, policy domain.PolicyConfig) (domain.PolicyConfig, error) {
	if problems := policy.Validate(); problems != nil {
		return domain.PolicyConfig{}, apperrors.NewValidationError("invalid policy", problems)
	}
	policy.UpdatedAt = s.clock.Now()
	if err := s.policies.Save(ctx, policy); err != nil {
		return domain.PolicyConfig{}, apperrors.NewStorageError(err)
	}
	s.logger.Info("policy updated",
		zap.Int("regular_quota", policy.RegularQuota),
		zap.Int("meal_quota", policy.MealQuota),
		zap.Bool("auto_end", policy.AutoEndPermission))
	return policy, nil
}
