// Copyright (c) 2025-2026, HibernalGlow and the neoview contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

// ImageContext is the per-page evaluation input. Built by the viewer layer
// from decoded page headers; never persisted.
type ImageContext struct {
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	BookPath  string            `json:"bookPath"`
	ImagePath string            `json:"imagePath,omitempty"` // inner archive path, empty for loose files
	ImageHash string            `json:"imageHash,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// PageInfo describes one page of an open book manifest.
type PageInfo struct {
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	ImagePath string            `json:"imagePath,omitempty"`
	ImageHash string            `json:"imageHash,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// BookManifest is sent by the viewer when a book is opened. Page order is the
// reading order; the index into Pages is the page index used everywhere else.
type BookManifest struct {
	BookPath string     `json:"bookPath"`
	Pages    []PageInfo `json:"pages"`
}

// Context builds the evaluation input for one page.
func (m *BookManifest) Context(pageIndex int) ImageContext {
	p := m.Pages[pageIndex]
	return ImageContext{
		Width:     p.Width,
		Height:    p.Height,
		BookPath:  m.BookPath,
		ImagePath: p.ImagePath,
		ImageHash: p.ImageHash,
		Metadata:  p.Metadata,
	}
}
