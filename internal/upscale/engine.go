// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package upscale matches pages against user conditions and resolves them to
// concrete job specifications.
package upscale

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/HibernalGlow/neoview-upscale/internal/models"
)

// regexCache caches compiled patterns across evaluations. A failed compile is
// cached as nil so malformed user patterns don't recompile on every page.
var regexCache sync.Map // pattern -> *regexp.Regexp (nil when invalid)

func compileCached(pattern string) *regexp.Regexp {
	if cached, ok := regexCache.Load(pattern); ok {
		re, _ := cached.(*regexp.Regexp)
		return re
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		log.Debug().Err(err).Str("pattern", pattern).Msg("upscale: regex compilation failed")
		re = nil
	}
	regexCache.Store(pattern, re)
	return re
}

// Evaluate returns the first enabled condition whose predicate holds against
// ctx, walking the list in ascending priority order, or nil when none match.
// The caller's slice is not mutated; non-dense priorities are tolerated by
// sorting on raw values.
func Evaluate(conditions []*models.Condition, ctx models.ImageContext) *models.Condition {
	sorted := slices.Clone(conditions)
	slices.SortStableFunc(sorted, func(a, b *models.Condition) int {
		return a.Priority - b.Priority
	})

	for _, cond := range sorted {
		if !cond.Enabled {
			continue
		}
		if matches(cond, ctx) {
			return cond
		}
	}
	return nil
}

func matches(cond *models.Condition, ctx models.ImageContext) bool {
	return dimensionsMatch(cond.Match, ctx) &&
		pathsMatch(cond.Match, ctx) &&
		metadataMatch(cond.Match, ctx)
}

// dimensionsMatch combines the present bound checks per dimensionMode. With
// no bounds set the category passes trivially.
func dimensionsMatch(m models.MatchSpec, ctx models.ImageContext) bool {
	var checks []bool
	if m.MinWidth != nil {
		checks = append(checks, ctx.Width >= *m.MinWidth)
	}
	if m.MinHeight != nil {
		checks = append(checks, ctx.Height >= *m.MinHeight)
	}
	if m.MaxWidth != nil {
		checks = append(checks, ctx.Width <= *m.MaxWidth)
	}
	if m.MaxHeight != nil {
		checks = append(checks, ctx.Height <= *m.MaxHeight)
	}
	if len(checks) == 0 {
		return true
	}

	if m.DimensionMode == models.DimensionModeOr {
		return slices.Contains(checks, true)
	}
	// and is the default
	return !slices.Contains(checks, false)
}

func pathsMatch(m models.MatchSpec, ctx models.ImageContext) bool {
	if m.RegexBookPath != "" {
		re := compileCached(m.RegexBookPath)
		if re == nil || !re.MatchString(ctx.BookPath) {
			return false
		}
	}
	// The inner path regex only applies when matchInnerPath is set.
	if m.MatchInnerPath && m.RegexImagePath != "" {
		re := compileCached(m.RegexImagePath)
		if re == nil || !re.MatchString(ctx.ImagePath) {
			return false
		}
	}
	return true
}

// metadataMatch requires every expression to hold (AND across keys). A
// missing context key fails that single expression, never errors.
func metadataMatch(m models.MatchSpec, ctx models.ImageContext) bool {
	for key, expr := range m.Metadata {
		value, ok := ctx.Metadata[key]
		if !ok {
			return false
		}
		if !evaluateExpression(expr.Operator, value, expr.Value) {
			return false
		}
	}
	return true
}

// evaluateExpression dispatches one operator. Numeric operators coerce both
// sides; failure to coerce is a non-match, not an error.
func evaluateExpression(op models.ExpressionOperator, contextValue, exprValue string) bool {
	switch op {
	case models.OperatorEqual:
		return strings.EqualFold(contextValue, exprValue)
	case models.OperatorNotEqual:
		return !strings.EqualFold(contextValue, exprValue)
	case models.OperatorGreaterThan, models.OperatorGreaterThanOrEqual,
		models.OperatorLessThan, models.OperatorLessThanOrEqual:
		return compareNumeric(op, contextValue, exprValue)
	case models.OperatorRegex:
		re := compileCached(exprValue)
		return re != nil && re.MatchString(contextValue)
	case models.OperatorContains:
		return strings.Contains(strings.ToLower(contextValue), strings.ToLower(exprValue))
	default:
		return false
	}
}

func compareNumeric(op models.ExpressionOperator, contextValue, exprValue string) bool {
	left, err := strconv.ParseFloat(strings.TrimSpace(contextValue), 64)
	if err != nil {
		return false
	}
	right, err := strconv.ParseFloat(strings.TrimSpace(exprValue), 64)
	if err != nil {
		return false
	}

	switch op {
	case models.OperatorGreaterThan:
		return left > right
	case models.OperatorGreaterThanOrEqual:
		return left >= right
	case models.OperatorLessThan:
		return left < right
	case models.OperatorLessThanOrEqual:
		return left <= right
	default:
		return false
	}
}
