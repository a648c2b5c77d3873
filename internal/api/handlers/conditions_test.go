// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HibernalGlow/neoview-upscale/internal/database"
	"github.com/HibernalGlow/neoview-upscale/internal/models"
	"github.com/HibernalGlow/neoview-upscale/internal/scheduler"
	"github.com/HibernalGlow/neoview-upscale/internal/testdb"
)

type noopExecutor struct{}

func (noopExecutor) ExecuteUpscale(ctx context.Context, job *scheduler.Job) (*scheduler.Result, error) {
	return &scheduler.Result{CachePath: "/cache/noop"}, nil
}

type conditionFixture struct {
	router *chi.Mux
	store  *models.ConditionStore
	svc    *scheduler.Service
}

func newConditionFixture(t *testing.T) *conditionFixture {
	t.Helper()

	db, err := database.New(testdb.PathFromTemplate(t, "handlers", "handlers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := models.NewConditionStore(db.Conn())
	svc := scheduler.NewService(noopExecutor{}, store, models.NewScheduleStore(db.Conn()))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, svc.Start(ctx))
	t.Cleanup(svc.Shutdown)

	router := chi.NewRouter()
	router.Route("/api/conditions", NewConditionHandler(store, svc).Routes)
	return &conditionFixture{router: router, store: store, svc: svc}
}

func (f *conditionFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeConditions(t *testing.T, rec *httptest.ResponseRecorder) []*models.Condition {
	t.Helper()
	var conds []*models.Condition
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&conds))
	return conds
}

func TestConditionAPI_ListSeeded(t *testing.T) {
	t.Parallel()

	f := newConditionFixture(t)
	rec := f.do(t, http.MethodGet, "/api/conditions/", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	conds := decodeConditions(t, rec)
	require.Len(t, conds, 1)
	assert.Equal(t, "Small pages", conds[0].Name)
}

func TestConditionAPI_CreateValidatesAndAppends(t *testing.T) {
	t.Parallel()

	f := newConditionFixture(t)

	invalid := models.DefaultCondition()
	invalid.Action.Scale = 7
	rec := f.do(t, http.MethodPost, "/api/conditions/", invalid)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	valid := models.DefaultCondition()
	valid.Name = "Large pages"
	rec = f.do(t, http.MethodPost, "/api/conditions/", valid)
	require.Equal(t, http.StatusCreated, rec.Code)

	conds := decodeConditions(t, rec)
	require.Len(t, conds, 2)
	assert.Equal(t, "Large pages", conds[1].Name)
	assert.Equal(t, 1, conds[1].Priority)

	// The scheduler snapshot follows the mutation.
	snapshot, _ := f.svc.Rules()
	assert.Len(t, snapshot, 2)
}

func TestConditionAPI_UpdateUnknownIs404(t *testing.T) {
	t.Parallel()

	f := newConditionFixture(t)
	cond := models.DefaultCondition()
	rec := f.do(t, http.MethodPut, "/api/conditions/missing-id", cond)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConditionAPI_DeleteLastRejected(t *testing.T) {
	t.Parallel()

	f := newConditionFixture(t)
	conds, err := f.store.List(context.Background())
	require.NoError(t, err)

	rec := f.do(t, http.MethodDelete, "/api/conditions/"+conds[0].ID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConditionAPI_ReorderAndDuplicate(t *testing.T) {
	t.Parallel()

	f := newConditionFixture(t)

	second := models.DefaultCondition()
	second.Name = "Second"
	rec := f.do(t, http.MethodPost, "/api/conditions/", second)
	require.Equal(t, http.StatusCreated, rec.Code)
	conds := decodeConditions(t, rec)
	require.Len(t, conds, 2)

	rec = f.do(t, http.MethodPost, "/api/conditions/reorder", map[string]any{
		"id":       conds[1].ID,
		"newIndex": 0,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	reordered := decodeConditions(t, rec)
	assert.Equal(t, "Second", reordered[0].Name)
	assert.Equal(t, 0, reordered[0].Priority)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/conditions/%s/duplicate", reordered[0].ID), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	duplicated := decodeConditions(t, rec)
	require.Len(t, duplicated, 3)
	assert.Equal(t, "Second (copy)", duplicated[1].Name)
}

func TestConditionAPI_ImportExportRoundTrip(t *testing.T) {
	t.Parallel()

	f := newConditionFixture(t)

	rec := f.do(t, http.MethodGet, "/api/conditions/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "upscale-conditions.json")
	exported := rec.Body.Bytes()

	// A non-array payload is rejected.
	rec = f.do(t, http.MethodPost, "/api/conditions/import", map[string]string{"not": "a list"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/conditions/import", bytes.NewReader(exported))
	out := httptest.NewRecorder()
	f.router.ServeHTTP(out, req)
	require.Equal(t, http.StatusOK, out.Code)

	conds := decodeConditions(t, out)
	require.Len(t, conds, 1)
	assert.Equal(t, "Small pages", conds[0].Name)
}
