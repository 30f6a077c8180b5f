package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connexus-ai/ragbox-backend/internal/domain"
	"github.com/connexus-ai/ragbox-backend/internal/ports"
)

// TenantStore implements ports.TenantStore with pgx.
type TenantStore struct {
	pool *pgxpool.Pool
}

// NewTenantStore creates a TenantStore.
func NewTenantStore(pool *pgxpool.Pool) *TenantStore {
	return &TenantStore{pool: pool}
}

var _ ports.TenantStore = (*TenantStore)(nil)

func (r *TenantStore) GetByID(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	t := &domain.Tenant{}
	var configJSON []byte

	err := r.pool.QueryRow(ctx, `
		SELECT id, display_name, api_key_hash, vertical, config, active
		FROM tenants WHERE id = $1`, tenantID,
	).Scan(&t.ID, &t.DisplayName, &t.APIKeyHash, &t.Vertical, &configJSON, &t.Active)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres.Tenant.GetByID: %w", err)
	}

	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &t.Config); err != nil {
			return nil, fmt.Errorf("postgres.Tenant.GetByID: unmarshal config: %w", err)
		}
	}
	return t, nil
}
