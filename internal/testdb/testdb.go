// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package testdb hands tests pre-migrated sqlite files. Running the schema
// migrations once per key and file-cloning the result is much cheaper than
// migrating inside every test, and each clone stays fully isolated.
package testdb

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/HibernalGlow/neoview-upscale/internal/database"
)

var (
	mu        sync.Mutex
	templates = make(map[string]string) // key -> migrated template file
)

// PathFromTemplate returns the path of a fresh migrated database inside the
// test's temp dir. Templates are built lazily and shared per key across the
// package's tests; the clone carries the -wal/-shm sidecars along since the
// database runs in WAL mode.
func PathFromTemplate(t *testing.T, key, filename string) string {
	t.Helper()

	template, err := templateFor(key)
	if err != nil {
		t.Fatalf("build database template %q: %v", key, err)
	}

	dst := filepath.Join(t.TempDir(), filename)
	if err := cloneDatabase(template, dst); err != nil {
		t.Fatalf("clone database template %q: %v", key, err)
	}
	return dst
}

func templateFor(key string) (string, error) {
	mu.Lock()
	defer mu.Unlock()

	if path, ok := templates[key]; ok {
		return path, nil
	}

	dir, err := os.MkdirTemp("", "neoview-testdb-")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "template.db")

	db, err := database.New(path)
	if err != nil {
		return "", fmt.Errorf("migrate template: %w", err)
	}
	if err := db.Close(); err != nil {
		return "", err
	}

	templates[key] = path
	return path, nil
}

// cloneDatabase copies the main file plus whichever WAL sidecars exist. A
// clean close usually checkpoints them away, but a leftover -wal must travel
// with the main file or the clone opens with stale data.
func cloneDatabase(src, dst string) error {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := copyFile(src+suffix, dst+suffix); err != nil {
			if suffix != "" && os.IsNotExist(err) {
				continue
			}
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
