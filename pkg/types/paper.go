// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the paper-analyzer pipeline:
// the Paper supplied by a source, the four stage records, the persisted
// AnalysisRecord, and the configuration for each component.
package types

import (
	"strings"
	"time"
)

// Paper holds the metadata and optional full text of a candidate paper.
// A Paper is immutable once fetched; every stage reads it, none writes it.
type Paper struct {
	// ID is the source identifier with any version suffix removed
	// (e.g. "2301.07041").
	ID string `json:"id" yaml:"id"`

	// Title is the paper title.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Abstract is the paper abstract.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Published is the publication or preprint date.
	Published time.Time `json:"published" yaml:"published"`

	// FullText is the converted paper body. Empty when unavailable.
	FullText string `json:"full_text,omitempty" yaml:"full_text,omitempty"`

	// Categories lists the source category tags (e.g. "cs.AI", "cs.CL").
	Categories []string `json:"categories,omitempty" yaml:"categories,omitempty"`

	// PrimaryCategory is the first-listed source category.
	PrimaryCategory string `json:"primary_category,omitempty" yaml:"primary_category,omitempty"`

	// SourceURL is the abstract page of the paper.
	SourceURL string `json:"source_url,omitempty" yaml:"source_url,omitempty"`

	// PDFURL links to the paper PDF when the source provides one.
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`

	// Source identifies which backend supplied the paper (e.g. "arxiv", "file").
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}

// Validate reports which of the fields every stage depends on are empty.
func (p Paper) Validate() []string {
	var missing []string
	if strings.TrimSpace(p.ID) == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(p.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(p.Abstract) == "" {
		missing = append(missing, "abstract")
	}
	return missing
}
