// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HibernalGlow/neoview-upscale/internal/database"
	"github.com/HibernalGlow/neoview-upscale/internal/models"
	"github.com/HibernalGlow/neoview-upscale/internal/testdb"
)

func newTestService(t *testing.T, exec Executor) *Service {
	t.Helper()

	db, err := database.New(testdb.PathFromTemplate(t, "scheduler", "scheduler.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewService(exec, models.NewConditionStore(db.Conn()), models.NewScheduleStore(db.Conn()))

	// Shutdown requires the start context to already be cancelled; cleanups
	// run LIFO, so register Shutdown before cancel.
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(svc.Shutdown)
	t.Cleanup(cancel)
	require.NoError(t, svc.Start(ctx))
	return svc
}

func TestService_StartSeedsConditions(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newGateExecutor())
	conds, defaults := svc.Rules()
	require.Len(t, conds, 1)
	assert.Equal(t, "Small pages", conds[0].Name)
	assert.Equal(t, models.DefaultUpscaleDefaults(), defaults)
	assert.Equal(t, models.DefaultScheduleConfig(), svc.ScheduleConfig())
}

func TestService_PageChangeRequiresOpenBook(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newGateExecutor())
	assert.ErrorIs(t, svc.OnPageChanged(0), ErrNoOpenBook)

	_, err := svc.RequestUpscale(0)
	assert.ErrorIs(t, err, ErrNoOpenBook)
}

func TestService_PageOutOfRange(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newGateExecutor())
	require.NoError(t, svc.OpenBook(makeManifest("/book.zip", 3)))

	assert.ErrorIs(t, svc.OnPageChanged(3), ErrPageOutOfRange)
	assert.ErrorIs(t, svc.OnPageChanged(-1), ErrPageOutOfRange)
	require.NoError(t, svc.OnPageChanged(2))
}

func TestService_OpenBookValidation(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newGateExecutor())
	assert.Error(t, svc.OpenBook(nil))
	assert.Error(t, svc.OpenBook(&models.BookManifest{BookPath: "/b.zip"}))
	assert.Error(t, svc.OpenBook(&models.BookManifest{Pages: []models.PageInfo{{Width: 1}}}))
}

func TestService_PageChangeSchedulesForegroundAndWindow(t *testing.T) {
	t.Parallel()

	exec := newGateExecutor()
	svc := newTestService(t, exec)
	require.NoError(t, svc.OpenBook(makeManifest("/book.zip", 20)))

	require.NoError(t, svc.OnPageChanged(10))

	// The seed condition matches the 800px manifest pages, so the current
	// page runs as foreground and the window fills around it.
	require.Eventually(t, func() bool {
		for _, v := range svc.Jobs() {
			if v.PageIndex == 10 && v.State == StateRunning {
				return v.Class == "foreground" && v.Origin == OriginCurrent
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	snap := svc.StatsSnapshot()
	assert.Equal(t, snap.PendingTasks+snap.ProcessingTasks, int64(len(svc.Jobs())))

	for i := 7; i <= 13; i++ {
		exec.release("/book.zip", i)
	}
	require.Eventually(t, func() bool {
		return len(svc.Jobs()) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestService_RequestUpscaleManual(t *testing.T) {
	t.Parallel()

	exec := newGateExecutor()
	svc := newTestService(t, exec)
	require.NoError(t, svc.OpenBook(makeManifest("/book.zip", 10)))

	job, err := svc.RequestUpscale(7)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, 7, job.PageIndex)
	assert.Equal(t, "foreground", job.Class)
	assert.Equal(t, OriginManual, job.Origin)

	exec.release("/book.zip", 7)
	require.Eventually(t, func() bool {
		return svc.StatsSnapshot().CompletedCount == 1
	}, time.Second, 5*time.Millisecond)

	// The page is settled now; another request is a no-op.
	again, err := svc.RequestUpscale(7)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestService_CloseBookCancelsQueued(t *testing.T) {
	t.Parallel()

	exec := newGateExecutor()
	svc := newTestService(t, exec)
	require.NoError(t, svc.OpenBook(makeManifest("/book.zip", 20)))
	require.NoError(t, svc.OnPageChanged(10))

	require.Eventually(t, func() bool {
		return len(svc.Jobs()) > 0
	}, time.Second, 5*time.Millisecond)

	svc.CloseBook()

	// Only running jobs survive the close.
	for _, v := range svc.Jobs() {
		assert.Equal(t, StateRunning, v.State)
	}
	assert.ErrorIs(t, svc.OnPageChanged(0), ErrNoOpenBook)

	for i := 7; i <= 13; i++ {
		exec.release("/book.zip", i)
	}
}

func TestService_UpdateScheduleConfigAppliesAndPersists(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newGateExecutor())

	cfg := svc.ScheduleConfig()
	cfg.BackgroundConcurrency = 9 // clamped to 4
	cfg.PreUpscaleEnabled = false

	applied, err := svc.UpdateScheduleConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 4, applied.BackgroundConcurrency)
	assert.False(t, applied.PreUpscaleEnabled)
	assert.Equal(t, applied, svc.ScheduleConfig())
}

func TestService_ReloadConditions(t *testing.T) {
	t.Parallel()

	exec := newGateExecutor()
	svc := newTestService(t, exec)

	_, err := svc.conditionStore.Mutate(context.Background(), func(conds []*models.Condition) ([]*models.Condition, error) {
		extra := models.DefaultCondition()
		extra.Name = "added"
		return models.AppendCondition(conds, extra), nil
	})
	require.NoError(t, err)

	require.NoError(t, svc.ReloadConditions(context.Background()))
	conds, _ := svc.Rules()
	assert.Len(t, conds, 2)
}
