// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package models defines the upscale condition model and its persistence.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// DimensionMode controls how the present dimension bounds of a MatchSpec
// combine: all must hold, or any one suffices.
type DimensionMode string

const (
	DimensionModeAnd DimensionMode = "and"
	DimensionModeOr  DimensionMode = "or"
)

// ExpressionOperator compares a page metadata value against an expression value.
type ExpressionOperator string

const (
	OperatorEqual              ExpressionOperator = "eq"
	OperatorNotEqual           ExpressionOperator = "ne"
	OperatorGreaterThan        ExpressionOperator = "gt"
	OperatorGreaterThanOrEqual ExpressionOperator = "gte"
	OperatorLessThan           ExpressionOperator = "lt"
	OperatorLessThanOrEqual    ExpressionOperator = "lte"
	OperatorRegex              ExpressionOperator = "regex"
	OperatorContains           ExpressionOperator = "contains"
)

// Expression is a single metadata constraint.
type Expression struct {
	Operator ExpressionOperator `json:"operator"`
	Value    string             `json:"value"`
}

// MatchSpec is the predicate half of a condition. Absent dimension bounds are
// unconstrained; an empty metadata map matches everything.
type MatchSpec struct {
	MinWidth           *int                  `json:"minWidth,omitempty"`
	MinHeight          *int                  `json:"minHeight,omitempty"`
	MaxWidth           *int                  `json:"maxWidth,omitempty"`
	MaxHeight          *int                  `json:"maxHeight,omitempty"`
	DimensionMode      DimensionMode         `json:"dimensionMode,omitempty"`
	RegexBookPath      string                `json:"regexBookPath,omitempty"`
	RegexImagePath     string                `json:"regexImagePath,omitempty"`
	MatchInnerPath     bool                  `json:"matchInnerPath,omitempty"`
	ExcludeFromPreload bool                  `json:"excludeFromPreload,omitempty"`
	Metadata           map[string]Expression `json:"metadata,omitempty"`
}

// UpscaleAction is the action half of a condition. When Skip is true the
// remaining fields are meaningless.
type UpscaleAction struct {
	Model      string `json:"model"`
	Scale      int    `json:"scale"`
	TileSize   int    `json:"tileSize"`
	NoiseLevel int    `json:"noiseLevel"`
	GPUID      int    `json:"gpuId"`
	UseCache   bool   `json:"useCache"`
	Skip       bool   `json:"skip,omitempty"`
}

// Condition is a user-authored rule mapping a match predicate to an upscale
// action. Priority is dense 0..n-1 across the live list; lower evaluates
// first and wins.
type Condition struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Enabled  bool          `json:"enabled"`
	Priority int           `json:"priority"`
	Match    MatchSpec     `json:"match"`
	Action   UpscaleAction `json:"action"`
}

// Validate checks structural constraints of a single condition.
func (c *Condition) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("condition name is required")
	}
	if c.Match.DimensionMode != "" && c.Match.DimensionMode != DimensionModeAnd && c.Match.DimensionMode != DimensionModeOr {
		return fmt.Errorf("invalid dimensionMode %q", c.Match.DimensionMode)
	}
	if !c.Action.Skip {
		if c.Action.Scale < 1 || c.Action.Scale > 4 {
			return fmt.Errorf("invalid scale %d: must be 1-4", c.Action.Scale)
		}
		if strings.TrimSpace(c.Action.Model) == "" {
			return errors.New("action model is required unless skip is set")
		}
	}
	for key, expr := range c.Match.Metadata {
		if !validOperator(expr.Operator) {
			return fmt.Errorf("invalid operator %q for metadata key %q", expr.Operator, key)
		}
	}
	return nil
}

func validOperator(op ExpressionOperator) bool {
	switch op {
	case OperatorEqual, OperatorNotEqual, OperatorGreaterThan, OperatorGreaterThanOrEqual,
		OperatorLessThan, OperatorLessThanOrEqual, OperatorRegex, OperatorContains:
		return true
	}
	return false
}

// Clone returns a deep copy.
func (c *Condition) Clone() *Condition {
	dup := *c
	if c.Match.MinWidth != nil {
		v := *c.Match.MinWidth
		dup.Match.MinWidth = &v
	}
	if c.Match.MinHeight != nil {
		v := *c.Match.MinHeight
		dup.Match.MinHeight = &v
	}
	if c.Match.MaxWidth != nil {
		v := *c.Match.MaxWidth
		dup.Match.MaxWidth = &v
	}
	if c.Match.MaxHeight != nil {
		v := *c.Match.MaxHeight
		dup.Match.MaxHeight = &v
	}
	if c.Match.Metadata != nil {
		dup.Match.Metadata = make(map[string]Expression, len(c.Match.Metadata))
		for k, v := range c.Match.Metadata {
			dup.Match.Metadata[k] = v
		}
	}
	return &dup
}

// NormalizePriorities sorts by raw priority (stable, so list order breaks
// ties for non-dense input) and reassigns dense 0..n-1 values. Every
// structural mutation must pass through here before the list is published.
func NormalizePriorities(conds []*Condition) {
	slices.SortStableFunc(conds, func(a, b *Condition) int {
		return a.Priority - b.Priority
	})
	for i, c := range conds {
		c.Priority = i
	}
}

// AppendCondition adds c at the end of the list and renormalizes.
func AppendCondition(conds []*Condition, c *Condition) []*Condition {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Priority = len(conds)
	out := append(conds, c)
	NormalizePriorities(out)
	return out
}

// RemoveCondition deletes the condition with the given id and renormalizes.
// Returns an error if the id is unknown or the list would become empty.
func RemoveCondition(conds []*Condition, id string) ([]*Condition, error) {
	idx := slices.IndexFunc(conds, func(c *Condition) bool { return c.ID == id })
	if idx < 0 {
		return nil, fmt.Errorf("condition %s not found", id)
	}
	if len(conds) == 1 {
		return nil, errors.New("cannot remove the last condition")
	}
	out := slices.Delete(slices.Clone(conds), idx, idx+1)
	NormalizePriorities(out)
	return out, nil
}

// MoveCondition moves the condition with the given id to position newIndex
// (clamped to the list bounds) and renormalizes.
func MoveCondition(conds []*Condition, id string, newIndex int) ([]*Condition, error) {
	idx := slices.IndexFunc(conds, func(c *Condition) bool { return c.ID == id })
	if idx < 0 {
		return nil, fmt.Errorf("condition %s not found", id)
	}
	if newIndex < 0 {
		newIndex = 0
	}
	if newIndex >= len(conds) {
		newIndex = len(conds) - 1
	}
	out := slices.Clone(conds)
	c := out[idx]
	out = slices.Delete(out, idx, idx+1)
	out = slices.Insert(out, newIndex, c)
	for i, cond := range out {
		cond.Priority = i
	}
	return out, nil
}

// DuplicateCondition inserts a copy (fresh id) directly after the original
// and renormalizes.
func DuplicateCondition(conds []*Condition, id string) ([]*Condition, error) {
	idx := slices.IndexFunc(conds, func(c *Condition) bool { return c.ID == id })
	if idx < 0 {
		return nil, fmt.Errorf("condition %s not found", id)
	}
	dup := conds[idx].Clone()
	dup.ID = uuid.NewString()
	dup.Name = dup.Name + " (copy)"
	out := slices.Insert(slices.Clone(conds), idx+1, dup)
	for i, cond := range out {
		cond.Priority = i
	}
	return out, nil
}

// ImportConditions parses a serialized condition list. The payload must be a
// JSON array; ids are kept when present and generated otherwise, and
// priorities are renormalized to dense 0..n-1.
func ImportConditions(data []byte) ([]*Condition, error) {
	trimmed := strings.TrimSpace(string(data))
	if !strings.HasPrefix(trimmed, "[") {
		return nil, errors.New("condition list must be a JSON array")
	}

	var conds []*Condition
	if err := json.Unmarshal(data, &conds); err != nil {
		return nil, fmt.Errorf("parse condition list: %w", err)
	}
	if len(conds) == 0 {
		return nil, errors.New("condition list is empty")
	}

	for _, c := range conds {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("condition %q: %w", c.Name, err)
		}
	}
	NormalizePriorities(conds)
	return conds, nil
}

// ExportConditions serializes the list, sorted by priority.
func ExportConditions(conds []*Condition) ([]byte, error) {
	sorted := slices.Clone(conds)
	slices.SortStableFunc(sorted, func(a, b *Condition) int {
		return a.Priority - b.Priority
	})
	return json.MarshalIndent(sorted, "", "  ")
}

// DefaultCondition returns the seed rule installed on first run: upscale
// everything below 1600px width with the default model.
func DefaultCondition() *Condition {
	maxWidth := 1600
	return &Condition{
		ID:       uuid.NewString(),
		Name:     "Small pages",
		Enabled:  true,
		Priority: 0,
		Match: MatchSpec{
			MaxWidth:      &maxWidth,
			DimensionMode: DimensionModeAnd,
		},
		Action: UpscaleAction{
			Model:      "realcugan-se",
			Scale:      2,
			TileSize:   0,
			NoiseLevel: -1,
			GPUID:      0,
			UseCache:   true,
		},
	}
}
