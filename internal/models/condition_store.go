// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// ConditionStore persists the condition list. Every mutation rewrites the
// full list in one transaction so priorities are always dense on disk.
type ConditionStore struct {
	db *sql.DB
}

func NewConditionStore(db *sql.DB) *ConditionStore {
	return &ConditionStore{db: db}
}

// EnsureSeed installs the default condition when the table is empty, so the
// list invariant (never empty while the feature is active) holds from first
// run.
func (s *ConditionStore) EnsureSeed(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM upscale_conditions`).Scan(&count); err != nil {
		return fmt.Errorf("count conditions: %w", err)
	}
	if count > 0 {
		return nil
	}
	return s.ReplaceAll(ctx, []*Condition{DefaultCondition()})
}

// List returns all conditions ordered by priority.
func (s *ConditionStore) List(ctx context.Context) ([]*Condition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, enabled, priority, match_json, action_json
		FROM upscale_conditions
		ORDER BY priority ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conds []*Condition
	for rows.Next() {
		var c Condition
		var matchJSON, actionJSON string
		if err := rows.Scan(&c.ID, &c.Name, &c.Enabled, &c.Priority, &matchJSON, &actionJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(matchJSON), &c.Match); err != nil {
			return nil, fmt.Errorf("decode match for condition %s: %w", c.ID, err)
		}
		if err := json.Unmarshal([]byte(actionJSON), &c.Action); err != nil {
			return nil, fmt.Errorf("decode action for condition %s: %w", c.ID, err)
		}
		conds = append(conds, &c)
	}
	return conds, rows.Err()
}

// Get returns one condition by id, or sql.ErrNoRows.
func (s *ConditionStore) Get(ctx context.Context, id string) (*Condition, error) {
	var c Condition
	var matchJSON, actionJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, enabled, priority, match_json, action_json
		FROM upscale_conditions
		WHERE id = ?
	`, id).Scan(&c.ID, &c.Name, &c.Enabled, &c.Priority, &matchJSON, &actionJSON)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(matchJSON), &c.Match); err != nil {
		return nil, fmt.Errorf("decode match for condition %s: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(actionJSON), &c.Action); err != nil {
		return nil, fmt.Errorf("decode action for condition %s: %w", c.ID, err)
	}
	return &c, nil
}

// ReplaceAll atomically replaces the stored list. Priorities are normalized
// before the write, never after.
func (s *ConditionStore) ReplaceAll(ctx context.Context, conds []*Condition) error {
	NormalizePriorities(conds)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM upscale_conditions`); err != nil {
		return fmt.Errorf("clear conditions: %w", err)
	}

	for _, c := range conds {
		matchJSON, err := json.Marshal(c.Match)
		if err != nil {
			return fmt.Errorf("encode match for condition %s: %w", c.ID, err)
		}
		actionJSON, err := json.Marshal(c.Action)
		if err != nil {
			return fmt.Errorf("encode action for condition %s: %w", c.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO upscale_conditions (id, name, enabled, priority, match_json, action_json, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		`, c.ID, c.Name, c.Enabled, c.Priority, string(matchJSON), string(actionJSON)); err != nil {
			return fmt.Errorf("insert condition %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// Mutate loads the list, applies fn, and stores the result atomically.
func (s *ConditionStore) Mutate(ctx context.Context, fn func([]*Condition) ([]*Condition, error)) ([]*Condition, error) {
	conds, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	next, err := fn(conds)
	if err != nil {
		return nil, err
	}
	if err := s.ReplaceAll(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}
