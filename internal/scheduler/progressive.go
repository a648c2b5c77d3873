// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scheduler

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/HibernalGlow/neoview-upscale/internal/models"
	"github.com/HibernalGlow/neoview-upscale/internal/upscale"
)

// ProgressiveController expands upscaling past the preload window when the
// reader lingers on a page. A single dwell timer restarts on every page
// change; when it fires, the pages after the current one are scheduled as
// one background batch.
type ProgressiveController struct {
	queue     *Queue
	rules     RuleSource
	config    ConfigFunc
	completed *CompletionIndex
	stats     *Stats

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
	book  *models.BookManifest
	page  int
}

func NewProgressiveController(queue *Queue, rules RuleSource, config ConfigFunc, completed *CompletionIndex, stats *Stats) *ProgressiveController {
	return &ProgressiveController{
		queue:     queue,
		rules:     rules,
		config:    config,
		completed: completed,
		stats:     stats,
	}
}

// OnPageChanged restarts the dwell timer for the new page. Any pending
// expansion for the previous page is abandoned.
func (p *ProgressiveController) OnPageChanged(book *models.BookManifest, pageIndex int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.book = book
	p.page = pageIndex
	p.rearmLocked()
}

// Refresh re-reads the config. Disabling stops the pending timer; changing
// the dwell restarts it from zero.
func (p *ProgressiveController) Refresh() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rearmLocked()
}

// Stop abandons any pending expansion, typically on book close.
func (p *ProgressiveController) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.book = nil
	p.stopLocked()
}

func (p *ProgressiveController) stopLocked() {
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *ProgressiveController) rearmLocked() {
	p.stopLocked()

	cfg := p.config()
	if p.book == nil || !cfg.AutoUpscaleEnabled || !cfg.ProgressiveUpscaleEnabled {
		return
	}

	gen := p.gen
	dwell := time.Duration(cfg.ProgressiveDwellSeconds) * time.Second
	p.timer = time.AfterFunc(dwell, func() {
		p.expire(gen)
	})
}

// expire runs the expansion for the page the timer was armed on, then
// re-arms the dwell so batch jobs cancelled later (window reconciliation,
// book-level cancels) get re-scheduled while the reader stays put. A stale
// generation means the timer was superseded between firing and acquiring the
// lock, so the fire is dropped.
func (p *ProgressiveController) expire(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.gen || p.book == nil {
		return
	}
	p.timer = nil

	cfg := p.config()
	if !cfg.AutoUpscaleEnabled || !cfg.ProgressiveUpscaleEnabled {
		return
	}

	book, page := p.book, p.page
	total := len(book.Pages)
	endPage := total - 1
	if cfg.ProgressiveMaxPages > 0 {
		endPage = min(page+cfg.ProgressiveMaxPages, total-1)
	}
	if endPage > page {
		log.Debug().
			Str("book", book.BookPath).
			Int("from", page+1).
			Int("to", endPage).
			Msg("upscale: progressive expansion triggered")

		conds, defaults := p.rules.Rules()
		for i := page + 1; i <= endPage; i++ {
			p.schedule(book, i, conds, defaults)
		}
	}

	p.rearmLocked()
}

func (p *ProgressiveController) schedule(book *models.BookManifest, pageIndex int, conds []*models.Condition, defaults models.UpscaleDefaults) {
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

	p.queue.Submit(book.BookPath, pageIndex, ctx.ImagePath, ctx.ImageHash, spec, ClassBackground, OriginProgressive)
}
