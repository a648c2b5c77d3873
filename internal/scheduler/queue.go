// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scheduler

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/HibernalGlow/neoview-upscale/internal/upscale"
)

// Queue is the bounded-concurrency job queue. At most `concurrency` jobs run
// at once; admission picks foreground before background and, within a class,
// the page nearest the current page. Duplicate submissions for a live page
// coalesce into the existing job.
type Queue struct {
	executor Executor
	stats    *Stats

	mu          sync.Mutex
	ctx         context.Context
	jobs        map[string]*Job // pageKey -> live (queued or running) job
	queued      []*Job
	running     map[string]*Job
	concurrency int
	currentPage int
	nextSeq     uint64
	wg          sync.WaitGroup

	// OnCompleted and OnFailed fire outside the queue lock after a job
	// reaches a terminal execution state. Set before Start.
	OnCompleted func(job *Job, res *Result)
	OnFailed    func(job *Job, err error)
}

func NewQueue(executor Executor, stats *Stats, concurrency int) *Queue {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Queue{
		executor:    executor,
		stats:       stats,
		ctx:         context.Background(),
		jobs:        make(map[string]*Job),
		running:     make(map[string]*Job),
		concurrency: concurrency,
	}
}

// Start binds the queue to ctx. Jobs submitted afterwards run under it;
// cancelling ctx aborts running executors.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	q.ctx = ctx
	q.mu.Unlock()
}

// Wait blocks until all running jobs have finished. Used on shutdown after
// the start context is cancelled.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Submit enqueues a job for (bookPath, pageIndex), or coalesces with the
// live one. A foreground submit against a queued background job promotes it
// in place. Skip specs are never accepted.
func (q *Queue) Submit(bookPath string, pageIndex int, imagePath, imageHash string, spec upscale.JobSpec, class PriorityClass, origin Origin) *Job {
	if spec.Skip {
		log.Warn().Str("book", bookPath).Int("page", pageIndex).Msg("upscale: skip spec submitted to queue, dropping")
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	key := pageKey(bookPath, pageIndex)
	if existing, ok := q.jobs[key]; ok {
		if class == ClassForeground && existing.class == ClassBackground && existing.state == StateQueued {
			existing.class = ClassForeground
			existing.origin = origin
			log.Debug().Str("book", bookPath).Int("page", pageIndex).Msg("upscale: promoted queued job to foreground")
		}
		return existing
	}

	q.nextSeq++
	job := &Job{
		ID:        uuid.New().String(),
		BookPath:  bookPath,
		PageIndex: pageIndex,
		ImagePath: imagePath,
		ImageHash: imageHash,
		Spec:      spec,
		class:     class,
		origin:    origin,
		state:     StateQueued,
		seq:       q.nextSeq,
	}
	q.jobs[key] = job
	q.queued = append(q.queued, job)
	q.stats.recordQueued()

	log.Debug().
		Str("book", bookPath).
		Int("page", pageIndex).
		Str("class", class.String()).
		Str("origin", string(origin)).
		Msg("upscale: job queued")

	q.admitLocked()
	return job
}

// Cancel removes the queued job for one page. Running jobs are left alone.
func (q *Queue) Cancel(bookPath string, pageIndex int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cancelQueuedLocked(pageKey(bookPath, pageIndex))
}

// CancelBook cancels every queued job for a book and returns the count.
// Typically called when the book closes.
func (q *Queue) CancelBook(bookPath string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	cancelled := 0
	for _, job := range q.snapshotQueuedLocked() {
		if job.BookPath == bookPath {
			if q.cancelQueuedLocked(pageKey(job.BookPath, job.PageIndex)) {
				cancelled++
			}
		}
	}
	if cancelled > 0 {
		log.Debug().Str("book", bookPath).Int("count", cancelled).Msg("upscale: cancelled queued jobs for book")
	}
	return cancelled
}

// CancelOutsideWindow cancels queued background jobs for a book whose page
// falls outside [lo, hi]. Foreground jobs and running jobs survive.
func (q *Queue) CancelOutsideWindow(bookPath string, lo, hi int) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	cancelled := 0
	for _, job := range q.snapshotQueuedLocked() {
		if job.BookPath != bookPath || job.class != ClassBackground {
			continue
		}
		if job.PageIndex >= lo && job.PageIndex <= hi {
			continue
		}
		if q.cancelQueuedLocked(pageKey(job.BookPath, job.PageIndex)) {
			cancelled++
		}
	}
	return cancelled
}

// SetConcurrency changes the live cap. Raising it admits immediately;
// lowering it never interrupts running jobs, the queue just admits nothing
// until enough of them finish.
func (q *Queue) SetConcurrency(n int) {
	if n < 1 {
		n = 1
	} else if n > 4 {
		n = 4
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.concurrency = n
	q.admitLocked()
}

// SetCurrentPage updates the reference point for nearest-page admission.
func (q *Queue) SetCurrentPage(pageIndex int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.currentPage = pageIndex
}

// Breakdown counts the live jobs: queued per priority class, plus running.
func (q *Queue) Breakdown() (queuedForeground, queuedBackground, running int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, job := range q.queued {
		if job.class == ClassForeground {
			queuedForeground++
		} else {
			queuedBackground++
		}
	}
	return queuedForeground, queuedBackground, len(q.running)
}

// Has reports whether a live job exists for the page.
func (q *Queue) Has(bookPath string, pageIndex int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.jobs[pageKey(bookPath, pageIndex)]
	return ok
}

// Snapshot lists the live jobs, queued first.
func (q *Queue) Snapshot() []JobView {
	q.mu.Lock()
	defer q.mu.Unlock()

	views := make([]JobView, 0, len(q.queued)+len(q.running))
	for _, job := range q.queued {
		views = append(views, q.viewLocked(job))
	}
	for _, job := range q.running {
		views = append(views, q.viewLocked(job))
	}
	return views
}

func (q *Queue) viewLocked(job *Job) JobView {
	v := JobView{
		ID:        job.ID,
		BookPath:  job.BookPath,
		PageIndex: job.PageIndex,
		ImagePath: job.ImagePath,
		ImageHash: job.ImageHash,
		Spec:      job.Spec,
		Class:     job.class.String(),
		Origin:    job.origin,
		State:     job.state,
	}
	if job.err != nil {
		v.Error = job.err.Error()
	}
	return v
}

func (q *Queue) snapshotQueuedLocked() []*Job {
	out := make([]*Job, len(q.queued))
	copy(out, q.queued)
	return out
}

func (q *Queue) cancelQueuedLocked(key string) bool {
	job, ok := q.jobs[key]
	if !ok || job.state != StateQueued {
		return false
	}
	job.state = StateCancelled
	delete(q.jobs, key)
	q.removeQueuedLocked(job)
	q.stats.recordCancelled()
	return true
}

func (q *Queue) removeQueuedLocked(job *Job) {
	for i, queued := range q.queued {
		if queued == job {
			q.queued = append(q.queued[:i], q.queued[i+1:]...)
			return
		}
	}
}

// admitLocked starts queued jobs while slots remain, best-first: lowest
// class, then smallest distance to the current page, then submission order.
func (q *Queue) admitLocked() {
	for len(q.running) < q.concurrency && len(q.queued) > 0 {
		best := 0
		for i := 1; i < len(q.queued); i++ {
			if q.betterLocked(q.queued[i], q.queued[best]) {
				best = i
			}
		}
		job := q.queued[best]
		q.queued = append(q.queued[:best], q.queued[best+1:]...)

		job.state = StateRunning
		q.running[pageKey(job.BookPath, job.PageIndex)] = job
		q.stats.recordRunning()

		q.wg.Add(1)
		go q.run(q.ctx, job)
	}
}

func (q *Queue) betterLocked(a, b *Job) bool {
	if a.class != b.class {
		return a.class < b.class
	}
	da, db := absDistance(a.PageIndex, q.currentPage), absDistance(b.PageIndex, q.currentPage)
	if da != db {
		return da < db
	}
	return a.seq < b.seq
}

func absDistance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

func (q *Queue) run(ctx context.Context, job *Job) {
	defer q.wg.Done()

	res, err := q.executor.ExecuteUpscale(ctx, job)

	q.mu.Lock()
	delete(q.jobs, pageKey(job.BookPath, job.PageIndex))
	delete(q.running, pageKey(job.BookPath, job.PageIndex))
	if err != nil {
		job.state = StateFailed
		job.err = err
		q.stats.recordFailed()
	} else {
		job.state = StateCompleted
		q.stats.recordCompleted()
	}
	q.admitLocked()
	q.mu.Unlock()

	if err != nil {
		log.Error().Err(err).
			Str("book", job.BookPath).
			Int("page", job.PageIndex).
			Msg("upscale: job failed")
		if q.OnFailed != nil {
			q.OnFailed(job, err)
		}
		return
	}

	log.Debug().
		Str("book", job.BookPath).
		Int("page", job.PageIndex).
		Str("cachePath", res.CachePath).
		Msg("upscale: job completed")
	if q.OnCompleted != nil {
		q.OnCompleted(job, res)
	}
}
