// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scheduler

import (
	"github.com/rs/zerolog/log"

	"github.com/HibernalGlow/neoview-upscale/internal/models"
	"github.com/HibernalGlow/neoview-upscale/internal/upscale"
)

// RuleSource provides the current condition list and global defaults. The
// service owns the snapshots; the controllers only read them.
type RuleSource interface {
	Rules() ([]*models.Condition, models.UpscaleDefaults)
}

// ConfigFunc returns the current schedule config.
type ConfigFunc func() models.ScheduleConfig

// PreloadController keeps the job queue aligned with the preload window
// around the current page: on every page change it cancels queued background
// jobs that fell out of the window and enqueues the pages that entered it.
type PreloadController struct {
	queue     *Queue
	rules     RuleSource
	config    ConfigFunc
	completed *CompletionIndex
	stats     *Stats
}

func NewPreloadController(queue *Queue, rules RuleSource, config ConfigFunc, completed *CompletionIndex, stats *Stats) *PreloadController {
	return &PreloadController{
		queue:     queue,
		rules:     rules,
		config:    config,
		completed: completed,
		stats:     stats,
	}
}

// OnPageChanged reconciles the window for the new page. The window is
// [page-N, page+N] clipped to the book; pages are visited nearest-first so
// admission distance ordering sees them in a sensible submission order.
func (p *PreloadController) OnPageChanged(book *models.BookManifest, pageIndex int) {
	p.queue.SetCurrentPage(pageIndex)

	cfg := p.config()
	if !cfg.AutoUpscaleEnabled || !cfg.PreUpscaleEnabled {
		return
	}

	total := len(book.Pages)
	lo := max(pageIndex-cfg.PreloadPages, 0)
	hi := min(pageIndex+cfg.PreloadPages, total-1)

	if cancelled := p.queue.CancelOutsideWindow(book.BookPath, lo, hi); cancelled > 0 {
		log.Debug().Int("count", cancelled).Int("page", pageIndex).Msg("upscale: cancelled jobs outside preload window")
	}

	conds, defaults := p.rules.Rules()
	for _, i := range windowOrder(pageIndex, lo, hi) {
		p.schedule(book, i, conds, defaults)
	}
}

func (p *PreloadController) schedule(book *models.BookManifest, pageIndex int, conds []*models.Condition, defaults models.UpscaleDefaults) {
	if p.completed.Done(book.BookPath, pageIndex) || p.queue.Has(book.BookPath, pageIndex) {
		return
	}

	ctx := book.Context(pageIndex)
	matched := upscale.Evaluate(conds, ctx)
	if matched != nil && matched.Match.ExcludeFromPreload {
		return
	}

	spec := upscale.Resolve(matched, defaults)
	if spec.Skip {
		p.stats.RecordSkipped()
		p.completed.MarkDone(book.BookPath, pageIndex)
		return
	}

	p.queue.Submit(book.BookPath, pageIndex, ctx.ImagePath, ctx.ImageHash, spec, ClassBackground, OriginPreload)
}

// windowOrder yields pageIndex first, then alternating outwards: +1, -1,
// +2, -2, clipped to [lo, hi].
func windowOrder(pageIndex, lo, hi int) []int {
	order := make([]int, 0, hi-lo+1)
	if pageIndex >= lo && pageIndex <= hi {
		order = append(order, pageIndex)
	}
	for offset := 1; ; offset++ {
		next, prev := pageIndex+offset, pageIndex-offset
		if next > hi && prev < lo {
			break
		}
		if next <= hi {
			order = append(order, next)
		}
		if prev >= lo {
			order = append(order, prev)
		}
	}
	return order
}
