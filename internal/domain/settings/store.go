package settings

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the Postgres-backed implementation of StoreAPI over the
// settings_definitions / settings_values table pair.
type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) ListActiveDefinitions(ctx context.Context, module string) ([]SettingDefinition, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, module, key, name, COALESCE(description, ''), value_type, default_value,
           COALESCE(category, ''), is_active, COALESCE(affected_features, '{}'), sort_order
    FROM settings_definitions
    WHERE module = $1 AND is_active = true
    ORDER BY sort_order, key
  `, module)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []SettingDefinition
	for rows.Next() {
		var def SettingDefinition
		var defaultJSON []byte
		if err := rows.Scan(
			&def.ID, &def.Module, &def.Key, &def.Name, &def.Description, &def.ValueType,
			&defaultJSON, &def.Category, &def.IsActive, &def.AffectedFeatures, &def.SortOrder,
		); err != nil {
			return nil, err
		}
		if len(defaultJSON) > 0 {
			if err := json.Unmarshal(defaultJSON, &def.DefaultValue); err != nil {
				return nil, fmt.Errorf("decode default for %s.%s: %w", def.Module, def.Key, err)
			}
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func (s *Store) ListValues(ctx context.Context, module string, chain []ScopeRef) ([]SettingValue, error) {
	if len(chain) == 0 {
		return nil, nil
	}
	query := `
    SELECT v.id, v.definition_id, v.scope_level, v.scope_entity_id,
           COALESCE(v.scope_entity_name, ''), v.value, v.inheritance_mode, v.updated_at
    FROM settings_values v
    JOIN settings_definitions d ON v.definition_id = d.id
    WHERE d.module = $1 AND d.is_active = true AND (`
	args := []any{module}
	for i, ref := range chain {
		if i > 0 {
			query += " OR "
		}
		query += fmt.Sprintf("(v.scope_level = $%d AND v.scope_entity_id = $%d)", len(args)+1, len(args)+2)
		args = append(args, string(ref.Level), ref.EntityID)
	}
	query += ")"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SettingValue
	for rows.Next() {
		var val SettingValue
		var valueJSON []byte
		if err := rows.Scan(
			&val.ID, &val.DefinitionID, &val.ScopeLevel, &val.ScopeEntityID,
			&val.ScopeEntityName, &valueJSON, &val.InheritanceMode, &val.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if len(valueJSON) > 0 {
			if err := json.Unmarshal(valueJSON, &val.Value); err != nil {
				return nil, fmt.Errorf("decode value %s: %w", val.ID, err)
			}
		}
		out = append(out, val)
	}
	return out, rows.Err()
}

// UpsertValues applies every write in one transaction. A write addressing an
// unknown key rolls back the whole call.
func (s *Store) UpsertValues(ctx context.Context, module string, writes []ValueWrite) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, write := range writes {
		valueJSON, err := json.Marshal(write.Value)
		if err != nil {
			return fmt.Errorf("encode value for %s.%s: %w", module, write.Key, err)
		}
		cmd, err := tx.Exec(ctx, `
      INSERT INTO settings_values (definition_id, scope_level, scope_entity_id, value, inheritance_mode)
      SELECT d.id, $3, $4, $5, $6
      FROM settings_definitions d
      WHERE d.module = $1 AND d.key = $2 AND d.is_active = true
      ON CONFLICT (definition_id, scope_level, scope_entity_id)
      DO UPDATE SET value = EXCLUDED.value,
                    inheritance_mode = EXCLUDED.inheritance_mode,
                    updated_at = now()
    `, module, write.Key, string(write.ScopeLevel), write.ScopeEntityID, valueJSON, string(write.InheritanceMode))
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s.%s", ErrUnknownKey, module, write.Key)
		}
	}

	return tx.Commit(ctx)
}
