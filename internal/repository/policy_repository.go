package repository

import (
	"context"

	"github.com/factoryops/jobdesk-permit/internal/domain"
)

const policySettingsKey = "policy"

type policyRepository struct {
	db DB
}

// NewPolicyRepository stores the policy as a JSON document in the settings table.
func NewPolicyRepository(db DB) PolicyRepository {
	return &policyRepository{db: db}
}

func (r *policyRepository) Get(ctx context.Context) (domain.PolicyConfig, error) {
	const query = `SELECT value, updated_at FROM settings WHERE key=$1`
	var policy domain.PolicyConfig
	if err := r.db.QueryRow(ctx, query, policySettingsKey).Scan(&policy, &policy.UpdatedAt); err != nil {
		return domain.PolicyConfig{}, notFound(err)
	}
	return policy, nil
}

// Save is last-write-wins.
func (r *policyRepository) Save(ctx context.Context, policy domain.PolicyConfig) error {
	const query = `
        INSERT INTO settings (key, value, updated_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`
	_, err := r.db.Exec(ctx, query, policySettingsKey, policy)
	return err
}
