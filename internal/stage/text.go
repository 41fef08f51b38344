// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stage

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Full text longer than truncateThreshold characters is cut to its first
// truncateHead and last truncateTail characters, keeping the introduction
// and the conclusion.
const (
	truncateThreshold = 7000
	truncateHead      = 5000
	truncateTail      = 2000
	truncateSeparator = "\n...\n"

	// excerptBudget bounds each section excerpt in the novelty prompt.
	excerptBudget = 1500
)

// TruncateFullText applies the head/tail window to text. It counts runes,
// so multi-byte characters are never split.
func TruncateFullText(text string) string {
	if utf8.RuneCountInString(text) <= truncateThreshold {
		return text
	}
	r := []rune(text)
	return string(r[:truncateHead]) + truncateSeparator + string(r[len(r)-truncateTail:])
}

// clip bounds text to n runes, marking a cut with "...".
func clip(text string, n int) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n]) + "..."
}

// section is a block of full text under one heading.
type section struct {
	heading string
	body    string
}

var (
	// numberedHeading matches "1 Introduction", "2.1. Related Work", "II. BACKGROUND".
	numberedHeading = regexp.MustCompile(`^(?:\d+(?:\.\d+)*\.?|[IVX]+\.)\s+([A-Z][^.!?]{0,80})$`)

	// headingNumber strips the enumerator from a Markdown heading such as "## 1 Introduction".
	headingNumber = regexp.MustCompile(`^(?:\d+(?:\.\d+)*\.?|[IVX]+\.)\s+`)

	introductionHeading = regexp.MustCompile(`(?i)^introduction\b`)
	relatedWorkHeading  = regexp.MustCompile(`(?i)^(?:related work|background|previous work|prior work|literature review)\b`)
)

// bareHeadings are section names recognized on a line of their own.
var bareHeadings = map[string]bool{
	"abstract": true, "introduction": true, "related work": true, "background": true,
	"previous work": true, "prior work": true, "literature review": true,
	"preliminaries": true, "method": true, "methods": true, "methodology": true,
	"approach": true, "proposed approach": true, "proposed method": true,
	"experiments": true, "experimental setup": true, "results": true,
	"evaluation": true, "discussion": true, "analysis": true, "limitations": true,
	"conclusion": true, "conclusions": true, "references": true, "acknowledgments": true,
}

// headingText returns the section title of line when it looks like a heading.
func headingText(line string) (string, bool) {
	if strings.HasPrefix(line, "#") {
		h := strings.TrimSpace(strings.TrimLeft(line, "#"))
		return headingNumber.ReplaceAllString(h, ""), true
	}
	if m := numberedHeading.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if bareHeadings[strings.ToLower(strings.TrimRight(line, ":"))] {
		return strings.TrimRight(line, ":"), true
	}
	return "", false
}

// splitSections splits full text at heading lines. Text before the first
// heading forms a section with an empty heading.
func splitSections(text string) []section {
	var sections []section
	var heading string
	var body []string

	flush := func() {
		b := strings.TrimSpace(strings.Join(body, "\n"))
		if heading != "" || b != "" {
			sections = append(sections, section{heading: heading, body: b})
		}
		body = nil
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if h, ok := headingText(trimmed); ok {
			flush()
			heading = h
			continue
		}
		body = append(body, line)
	}
	flush()
	return sections
}

// ExtractIntroduction returns up to 1500 characters of the introduction.
// Without an introduction heading the opening of the text is used; without
// full text it returns "".
func ExtractIntroduction(fullText string) string {
	if strings.TrimSpace(fullText) == "" {
		return ""
	}
	for _, s := range splitSections(fullText) {
		if introductionHeading.MatchString(s.heading) {
			return clip(s.body, excerptBudget)
		}
	}
	return clip(fullText, excerptBudget)
}

// ExtractRelatedWork returns up to 1500 characters of the related-work
// section. Without one it uses the section after the introduction, and
// returns "" when neither exists.
func ExtractRelatedWork(fullText string) string {
	if strings.TrimSpace(fullText) == "" {
		return ""
	}
	sections := splitSections(fullText)
	for _, s := range sections {
		if relatedWorkHeading.MatchString(s.heading) {
			return clip(s.body, excerptBudget)
		}
	}
	for i, s := range sections {
		if introductionHeading.MatchString(s.heading) && i+1 < len(sections) {
			return clip(sections[i+1].body, excerptBudget)
		}
	}
	return ""
}
