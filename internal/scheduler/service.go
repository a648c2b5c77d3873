// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/HibernalGlow/neoview-upscale/internal/models"
	"github.com/HibernalGlow/neoview-upscale/internal/upscale"
)

var (
	ErrNoOpenBook     = errors.New("no open book")
	ErrPageOutOfRange = errors.New("page index out of range")
)

// Service is the scheduling facade the API layer talks to. It owns the
// in-memory snapshots of conditions, defaults and schedule config, the open
// book, and the queue plus its two controllers.
type Service struct {
	conditionStore *models.ConditionStore
	scheduleStore  *models.ScheduleStore

	queue       *Queue
	preload     *PreloadController
	progressive *ProgressiveController
	stats       *Stats
	completed   *CompletionIndex

	mu         sync.RWMutex
	conditions []*models.Condition
	defaults   models.UpscaleDefaults
	config     models.ScheduleConfig
	book       *models.BookManifest
	page       int
}

func NewService(executor Executor, conditionStore *models.ConditionStore, scheduleStore *models.ScheduleStore) *Service {
	s := &Service{
		conditionStore: conditionStore,
		scheduleStore:  scheduleStore,
		stats:          NewStats(),
		completed:      NewCompletionIndex(),
		defaults:       models.DefaultUpscaleDefaults(),
		config:         models.DefaultScheduleConfig(),
	}
	s.queue = NewQueue(executor, s.stats, s.config.BackgroundConcurrency)
	s.queue.OnCompleted = s.jobCompleted
	s.preload = NewPreloadController(s.queue, s, s.ScheduleConfig, s.completed, s.stats)
	s.progressive = NewProgressiveController(s.queue, s, s.ScheduleConfig, s.completed, s.stats)
	return s
}

// Start loads the persisted state and binds the queue to ctx.
func (s *Service) Start(ctx context.Context) error {
	if err := s.conditionStore.EnsureSeed(ctx); err != nil {
		return fmt.Errorf("seed conditions: %w", err)
	}
	conds, err := s.conditionStore.List(ctx)
	if err != nil {
		return fmt.Errorf("load conditions: %w", err)
	}
	cfg, err := s.scheduleStore.GetScheduleConfig(ctx)
	if err != nil {
		return fmt.Errorf("load schedule config: %w", err)
	}
	defaults, err := s.scheduleStore.GetUpscaleDefaults(ctx)
	if err != nil {
		return fmt.Errorf("load upscale defaults: %w", err)
	}

	s.mu.Lock()
	s.conditions = conds
	s.config = cfg
	s.defaults = defaults
	s.mu.Unlock()

	s.queue.SetConcurrency(cfg.BackgroundConcurrency)
	s.queue.Start(ctx)

	log.Info().
		Int("conditions", len(conds)).
		Int("concurrency", cfg.BackgroundConcurrency).
		Bool("autoUpscale", cfg.AutoUpscaleEnabled).
		Msg("upscale: scheduler started")
	return nil
}

// Shutdown stops the dwell timer and waits for running jobs. The queue's
// start context must already be cancelled by the caller.
func (s *Service) Shutdown() {
	s.progressive.Stop()
	s.queue.Wait()
}

// Rules returns the current condition and defaults snapshots.
func (s *Service) Rules() ([]*models.Condition, models.UpscaleDefaults) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conditions, s.defaults
}

// ScheduleConfig returns the current schedule config snapshot.
func (s *Service) ScheduleConfig() models.ScheduleConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// OpenBook replaces the open book. Any queued work for a previous book is
// cancelled.
func (s *Service) OpenBook(manifest *models.BookManifest) error {
	if manifest == nil || manifest.BookPath == "" {
		return errors.New("manifest missing book path")
	}
	if len(manifest.Pages) == 0 {
		return errors.New("manifest has no pages")
	}

	s.mu.Lock()
	previous := s.book
	s.book = manifest
	s.page = 0
	s.mu.Unlock()

	if previous != nil && previous.BookPath != manifest.BookPath {
		s.progressive.Stop()
		s.queue.CancelBook(previous.BookPath)
	}

	log.Info().Str("book", manifest.BookPath).Int("pages", len(manifest.Pages)).Msg("upscale: book opened")
	return nil
}

// CloseBook drops the open book and cancels its queued jobs. Running jobs
// finish and populate the cache for the next open.
func (s *Service) CloseBook() {
	s.mu.Lock()
	book := s.book
	s.book = nil
	s.mu.Unlock()

	s.progressive.Stop()
	if book != nil {
		s.queue.CancelBook(book.BookPath)
		log.Info().Str("book", book.BookPath).Msg("upscale: book closed")
	}
}

// OnPageChanged drives the whole scheduling cycle for a navigation event:
// foreground job for the new page, preload window reconciliation, and the
// progressive dwell timer restart.
func (s *Service) OnPageChanged(pageIndex int) error {
	s.mu.Lock()
	book := s.book
	if book == nil {
		s.mu.Unlock()
		return ErrNoOpenBook
	}
	if pageIndex < 0 || pageIndex >= len(book.Pages) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, pageIndex, len(book.Pages))
	}
	s.page = pageIndex
	conds, defaults, cfg := s.conditions, s.defaults, s.config
	s.mu.Unlock()

	if cfg.AutoUpscaleEnabled {
		s.submitForeground(book, pageIndex, OriginCurrent, conds, defaults)
	}
	s.preload.OnPageChanged(book, pageIndex)
	s.progressive.OnPageChanged(book, pageIndex)
	return nil
}

// RequestUpscale schedules one page as a foreground job, regardless of the
// auto-upscale switch or excludeFromPreload. Returns the live job, or nil
// when the page resolved to skip or is already done.
func (s *Service) RequestUpscale(pageIndex int) (*JobView, error) {
	s.mu.RLock()
	book := s.book
	conds, defaults := s.conditions, s.defaults
	s.mu.RUnlock()

	if book == nil {
		return nil, ErrNoOpenBook
	}
	if pageIndex < 0 || pageIndex >= len(book.Pages) {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, pageIndex, len(book.Pages))
	}

	job := s.submitForeground(book, pageIndex, OriginManual, conds, defaults)
	if job == nil {
		return nil, nil
	}
	views := s.queue.Snapshot()
	for i := range views {
		if views[i].ID == job.ID {
			return &views[i], nil
		}
	}
	return nil, nil
}

// submitForeground resolves and submits one page at foreground priority.
// excludeFromPreload only guards background scheduling, so it is ignored
// here.
func (s *Service) submitForeground(book *models.BookManifest, pageIndex int, origin Origin, conds []*models.Condition, defaults models.UpscaleDefaults) *Job {
	if s.completed.Done(book.BookPath, pageIndex) {
		return nil
	}

	ctx := book.Context(pageIndex)
	spec := upscale.Resolve(upscale.Evaluate(conds, ctx), defaults)
	if spec.Skip {
		s.stats.RecordSkipped()
		s.completed.MarkDone(book.BookPath, pageIndex)
		return nil
	}

	return s.queue.Submit(book.BookPath, pageIndex, ctx.ImagePath, ctx.ImageHash, spec, ClassForeground, origin)
}

// CancelPage cancels the queued job for one page of the open book.
func (s *Service) CancelPage(pageIndex int) (bool, error) {
	s.mu.RLock()
	book := s.book
	s.mu.RUnlock()
	if book == nil {
		return false, ErrNoOpenBook
	}
	return s.queue.Cancel(book.BookPath, pageIndex), nil
}

// UpdateScheduleConfig persists the new config and applies it live:
// concurrency takes effect on the queue at once and the progressive timer is
// re-armed against the new settings.
func (s *Service) UpdateScheduleConfig(ctx context.Context, cfg models.ScheduleConfig) (models.ScheduleConfig, error) {
	cfg = cfg.Clamped()
	if err := s.scheduleStore.SaveScheduleConfig(ctx, cfg); err != nil {
		return models.ScheduleConfig{}, err
	}

	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()

	s.queue.SetConcurrency(cfg.BackgroundConcurrency)
	s.progressive.Refresh()

	log.Info().
		Int("concurrency", cfg.BackgroundConcurrency).
		Bool("autoUpscale", cfg.AutoUpscaleEnabled).
		Bool("progressive", cfg.ProgressiveUpscaleEnabled).
		Msg("upscale: schedule config updated")
	return cfg, nil
}

// UpdateDefaults persists and applies new global upscale defaults.
func (s *Service) UpdateDefaults(ctx context.Context, d models.UpscaleDefaults) error {
	if err := s.scheduleStore.SaveUpscaleDefaults(ctx, d); err != nil {
		return err
	}
	s.mu.Lock()
	s.defaults = d
	s.mu.Unlock()
	return nil
}

// ReloadConditions refreshes the in-memory snapshot from the store. Called
// after any condition mutation; live jobs keep their already-resolved specs.
func (s *Service) ReloadConditions(ctx context.Context) error {
	conds, err := s.conditionStore.List(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conditions = conds
	s.mu.Unlock()
	log.Debug().Int("count", len(conds)).Msg("upscale: conditions reloaded")
	return nil
}

// StatsSnapshot returns the current counters.
func (s *Service) StatsSnapshot() StatsSnapshot {
	return s.stats.Snapshot()
}

// QueueBreakdown is the live queue composition reported alongside the
// counters.
type QueueBreakdown struct {
	QueuedForeground int `json:"queuedForeground"`
	QueuedBackground int `json:"queuedBackground"`
	Running          int `json:"running"`
}

// Breakdown returns the live queue composition.
func (s *Service) Breakdown() QueueBreakdown {
	fg, bg, running := s.queue.Breakdown()
	return QueueBreakdown{QueuedForeground: fg, QueuedBackground: bg, Running: running}
}

// Jobs lists the live jobs.
func (s *Service) Jobs() []JobView {
	return s.queue.Snapshot()
}

func (s *Service) jobCompleted(job *Job, res *Result) {
	s.completed.MarkDone(job.BookPath, job.PageIndex)
}
