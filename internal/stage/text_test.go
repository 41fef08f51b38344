// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stage

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateFullText(t *testing.T) {
	short := strings.Repeat("x", 7000)
	assert.Equal(t, short, TruncateFullText(short))
	assert.Equal(t, "", TruncateFullText(""))

	long := strings.Repeat("h", 5000) + strings.Repeat("m", 10) + strings.Repeat("t", 2000)
	got := TruncateFullText(long)
	assert.Equal(t, strings.Repeat("h", 5000)+"\n...\n"+strings.Repeat("t", 2000), got)
}

func TestTruncateFullTextRuneSafe(t *testing.T) {
	// 8000 three-byte runes.
	text := strings.Repeat("界", 8000)
	got := TruncateFullText(text)

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 5000+2000+len([]rune(truncateSeparator)), utf8.RuneCountInString(got))
}

func TestClip(t *testing.T) {
	assert.Equal(t, "abc", clip("  abc  ", 5))
	assert.Equal(t, "ab...", clip("abcdef", 2))
}

func TestExtractIntroduction(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"empty", "", ""},
		{"markdown", "# Title\n\nAbstract text.\n\n## 1 Introduction\n\nWe study X.\n\n## 2 Method\n\nDetails.", "We study X."},
		{"plain heading", "Introduction\nLLMs are strong.\n\nMethod\nPrompting.", "LLMs are strong."},
		{"numbered", "1. Introduction\nIntro body.\n2. Background\nBg body.", "Intro body."},
		{"roman", "I. INTRODUCTION\nRoman intro.\nII. RELATED WORK\nPrior.", "Roman intro."},
		{"no heading uses opening", "Just a body of text with no headings at all.", "Just a body of text with no headings at all."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractIntroduction(tt.text))
		})
	}
}

func TestExtractIntroductionBudget(t *testing.T) {
	text := "## Introduction\n" + strings.Repeat("w", 3000) + "\n## Method\nm"
	got := ExtractIntroduction(text)
	assert.Equal(t, strings.Repeat("w", excerptBudget)+"...", got)
}

func TestExtractRelatedWork(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"empty", "", ""},
		{"related work heading", "## Introduction\nI.\n## Related Work\nPrior art.\n## Method\nM.", "Prior art."},
		{"background heading", "1 Introduction\nI.\n2 Background\nContext.\n3 Method\nM.", "Context."},
		{"roman", "I. INTRODUCTION\nRoman intro.\nII. RELATED WORK\nPrior.", "Prior."},
		{"section after introduction", "Introduction\nIntro.\n\nProposed Approach\nOur idea.", "Our idea."},
		{"nothing found", "No structure here.", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractRelatedWork(tt.text))
		})
	}
}
