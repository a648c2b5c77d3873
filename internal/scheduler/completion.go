// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scheduler

import "sync"

// CompletionIndex remembers which pages are settled for the session, either
// upscaled or resolved to skip, so the controllers don't re-schedule them on
// every page change.
type CompletionIndex struct {
	mu   sync.RWMutex
	done map[string]struct{}
}

func NewCompletionIndex() *CompletionIndex {
	return &CompletionIndex{done: make(map[string]struct{})}
}

func (c *CompletionIndex) MarkDone(bookPath string, pageIndex int) {
	c.mu.Lock()
	c.done[pageKey(bookPath, pageIndex)] = struct{}{}
	c.mu.Unlock()
}

func (c *CompletionIndex) Done(bookPath string, pageIndex int) bool {
	c.mu.RLock()
	_, ok := c.done[pageKey(bookPath, pageIndex)]
	c.mu.RUnlock()
	return ok
}

// Forget drops one page, forcing the next scheduling pass to resolve it
// again. Used when a condition update should re-apply to a settled page.
func (c *CompletionIndex) Forget(bookPath string, pageIndex int) {
	c.mu.Lock()
	delete(c.done, pageKey(bookPath, pageIndex))
	c.mu.Unlock()
}
