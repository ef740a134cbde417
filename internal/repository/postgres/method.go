package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/campaign-optimizer/internal/domain"
	"github.com/ignite/campaign-optimizer/internal/optimization/store"
)

// MethodRepo implements store.MethodStore against PostgreSQL.
type MethodRepo struct{ db *sql.DB }

// NewMethodRepo creates a Postgres-backed optimization method repository.
func NewMethodRepo(db *sql.DB) *MethodRepo { return &MethodRepo{db: db} }

func (r *MethodRepo) scanOne(row *sql.Row) (*domain.OptimizationMethod, error) {
	m := &domain.OptimizationMethod{}
	var triggerJSON, configJSON, statsJSON []byte
	err := row.Scan(
		&m.ID, &m.Name, &m.Description, &m.MethodType, &triggerJSON, &configJSON,
		&m.IsActive, &m.CooldownMinutes, &statsJSON, &m.CreatedAt, &m.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, store.ErrMethodNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan method: %w", err)
	}
	if len(triggerJSON) > 0 {
		if err := json.Unmarshal(triggerJSON, &m.TriggerConditions); err != nil {
			return nil, fmt.Errorf("unmarshal trigger_conditions: %w", err)
		}
	}
	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &m.Config); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}
	if len(statsJSON) > 0 {
		if err := json.Unmarshal(statsJSON, &m.Stats); err != nil {
			return nil, fmt.Errorf("unmarshal stats: %w", err)
		}
	}
	return m, nil
}

const methodSelectColumns = `
	id, name, description, method_type, trigger_conditions, config,
	is_active, cooldown_minutes, stats, created_at, updated_at`

func (r *MethodRepo) GetByName(ctx context.Context, name string) (*domain.OptimizationMethod, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM optimization_methods WHERE name = $1
	`, methodSelectColumns), name)
	return r.scanOne(row)
}

func (r *MethodRepo) Get(ctx context.Context, id string) (*domain.OptimizationMethod, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM optimization_methods WHERE id = $1
	`, methodSelectColumns), id)
	return r.scanOne(row)
}

func (r *MethodRepo) Create(ctx context.Context, m *domain.OptimizationMethod) (string, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	triggerJSON, err := json.Marshal(m.TriggerConditions)
	if err != nil {
		return "", fmt.Errorf("marshal trigger_conditions: %w", err)
	}
	configJSON, err := json.Marshal(m.Config)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	statsJSON, err := json.Marshal(m.Stats)
	if err != nil {
		return "", fmt.Errorf("marshal stats: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO optimization_methods
			(id, name, description, method_type, trigger_conditions, config,
			 is_active, cooldown_minutes, stats, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (name) DO NOTHING
	`, m.ID, m.Name, m.Description, m.MethodType, triggerJSON, configJSON,
		m.IsActive, m.CooldownMinutes, statsJSON)
	if err != nil {
		return "", fmt.Errorf("create method: %w", err)
	}
	return m.ID, nil
}

func (r *MethodRepo) List(ctx context.Context) ([]domain.OptimizationMethod, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM optimization_methods ORDER BY name ASC
	`, methodSelectColumns))
	if err != nil {
		return nil, fmt.Errorf("list methods: %w", err)
	}
	defer rows.Close()

	var out []domain.OptimizationMethod
	for rows.Next() {
		m := domain.OptimizationMethod{}
		var triggerJSON, configJSON, statsJSON []byte
		if err := rows.Scan(
			&m.ID, &m.Name, &m.Description, &m.MethodType, &triggerJSON, &configJSON,
			&m.IsActive, &m.CooldownMinutes, &statsJSON, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan method: %w", err)
		}
		_ = json.Unmarshal(triggerJSON, &m.TriggerConditions)
		_ = json.Unmarshal(configJSON, &m.Config)
		_ = json.Unmarshal(statsJSON, &m.Stats)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MethodRepo) UpdateConfig(ctx context.Context, id string, config map[string]any) error {
	configJSON, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE optimization_methods SET config = $1, updated_at = NOW() WHERE id = $2
	`, configJSON, id)
	if err != nil {
		return fmt.Errorf("update method config: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.ErrMethodNotFound
	}
	return nil
}

func (r *MethodRepo) UpdateSettings(ctx context.Context, id string, isActive *bool, cooldownMinutes *int, config map[string]any) error {
	current, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if isActive != nil {
		current.IsActive = *isActive
	}
	if cooldownMinutes != nil {
		current.CooldownMinutes = *cooldownMinutes
	}
	if config != nil {
		current.Config = config
	}
	configJSON, err := json.Marshal(current.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE optimization_methods
		SET is_active = $1, cooldown_minutes = $2, config = $3, updated_at = NOW()
		WHERE id = $4
	`, current.IsActive, current.CooldownMinutes, configJSON, id)
	if err != nil {
		return fmt.Errorf("update method settings: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.ErrMethodNotFound
	}
	return nil
}

func (r *MethodRepo) UpdateStats(ctx context.Context, id string, stats domain.MethodStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE optimization_methods SET stats = $1, updated_at = NOW() WHERE id = $2
	`, statsJSON, id)
	if err != nil {
		return fmt.Errorf("update method stats: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.ErrMethodNotFound
	}
	return nil
}
