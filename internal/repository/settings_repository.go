package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const aiOpsKey = "ai_ops_enabled"

// SettingsRepository persists bot-wide toggles.
type SettingsRepository interface {
	// AIOpsEnabled reports the stored toggle, or fallback when it was never set.
	AIOpsEnabled(ctx context.Context, fallback bool) (bool, error)
	SetAIOpsEnabled(ctx context.Context, enabled bool) error
}

type settingsRepository struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository instantiates the postgres repository.
func NewSettingsRepository(pool *pgxpool.Pool) SettingsRepository {
	return &settingsRepository{pool: pool}
}

func (r *settingsRepository) AIOpsEnabled(ctx context.Context, fallback bool) (bool, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT value FROM bot_settings WHERE key=$1`, aiOpsKey).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fallback, nil
		}
		return fallback, err
	}
	var enabled bool
	if err := json.Unmarshal(raw, &enabled); err != nil {
		return fallback, err
	}
	return enabled, nil
}

func (r *settingsRepository) SetAIOpsEnabled(ctx context.Context, enabled bool) error {
	raw, err := json.Marshal(enabled)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO bot_settings (key, value, updated_at) VALUES ($1,$2,NOW())
        ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`
	_, err = r.pool.Exec(ctx, query, aiOpsKey, raw)
	return err
}

type memorySettingsRepository struct {
	mu    sync.RWMutex
	aiOps *bool
}

// NewInMemorySettingsRepository returns a process-local SettingsRepository.
func NewInMemorySettingsRepository() SettingsRepository {
	return &memorySettingsRepository{}
}

func (r *memorySettingsRepository) AIOpsEnabled(_ context.Context, fallback bool) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.aiOps == nil {
		return fallback, nil
	}
	return *r.aiOps, nil
}

func (r *memorySettingsRepository) SetAIOpsEnabled(_ context.Context, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aiOps = &enabled
	return nil
}
