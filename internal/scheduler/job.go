// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package scheduler runs the upscale job queue and the controllers that feed
// it: the preload window and the progressive expansion timer.
package scheduler

import (
	"context"
	"fmt"

	"github.com/HibernalGlow/neoview-upscale/internal/upscale"
)

// PriorityClass orders admission. Foreground always wins over background.
type PriorityClass int

const (
	ClassForeground PriorityClass = iota
	ClassBackground
)

func (c PriorityClass) String() string {
	if c == ClassForeground {
		return "foreground"
	}
	return "background"
}

// Origin records what scheduled a job, for logs and the jobs listing.
type Origin string

const (
	OriginCurrent     Origin = "current"
	OriginPreload     Origin = "preload"
	OriginProgressive Origin = "progressive"
	OriginManual      Origin = "manual"
)

// JobState is the job lifecycle. Queued is the only state a cancel can take
// down; Running always finishes on its own terms.
type JobState string

const (
	StateQueued    JobState = "queued"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Job is one page upscale request. Identity is (BookPath, PageIndex); the
// queue holds at most one live job per page. Mutable fields are guarded by
// the queue lock.
type Job struct {
	ID        string          `json:"id"`
	BookPath  string          `json:"bookPath"`
	PageIndex int             `json:"pageIndex"`
	ImagePath string          `json:"imagePath"`
	ImageHash string          `json:"imageHash,omitempty"`
	Spec      upscale.JobSpec `json:"spec"`

	class  PriorityClass
	origin Origin
	state  JobState
	seq    uint64
	err    error
}

// JobView is an immutable snapshot of a job for API responses.
type JobView struct {
	ID        string          `json:"id"`
	BookPath  string          `json:"bookPath"`
	PageIndex int             `json:"pageIndex"`
	ImagePath string          `json:"imagePath"`
	ImageHash string          `json:"imageHash,omitempty"`
	Spec      upscale.JobSpec `json:"spec"`
	Class     string          `json:"class"`
	Origin    Origin          `json:"origin"`
	State     JobState        `json:"state"`
	Error     string          `json:"error,omitempty"`
}

// Result is what the executor produced for a completed job.
type Result struct {
	CachePath string `json:"cachePath"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Executor performs the actual upscale work for one job. Implementations
// must honor ctx cancellation.
type Executor interface {
	ExecuteUpscale(ctx context.Context, job *Job) (*Result, error)
}

func pageKey(bookPath string, pageIndex int) string {
	return fmt.Sprintf("%s#%d", bookPath, pageIndex)
}
