package research

import (
	"regexp"
	"sort"
	"strings"
)

// interval is a half-open [start, end) byte-offset span.
type interval struct {
	start, end int
}

// mergeIntervals merges overlapping or gap-adjacent intervals.
func mergeIntervals(intervals []interval, gap int) []interval {
	if len(intervals) == 0 {
		return nil
	}
	sorted := append([]interval(nil), intervals...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start < sorted[j].start })

	merged := []interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if iv.start <= last.end+gap {
			if iv.end > last.end {
				last.end = iv.end
			}
		} else {
			merged = append(merged, iv)
		}
	}
	return merged
}

// removeConsecutiveShortLines strips runs of minConsecutive or more
// lines shorter than maxLineLength, then collapses runs of blank lines
// left behind.
func removeConsecutiveShortLines(text string, maxLineLength, minConsecutive int) string {
	lines := strings.Split(text, "\n")
	if len(lines) < minConsecutive {
		return text
	}

	keep := make([]bool, len(lines))
	for i := range keep {
		keep[i] = true
	}

	i := 0
	for i < len(lines) {
		if len(strings.TrimSpace(lines[i])) < maxLineLength {
			j := i
			for j < len(lines) && len(strings.TrimSpace(lines[j])) < maxLineLength {
				j++
			}
			if j-i >= minConsecutive {
				for k := i; k < j; k++ {
					keep[k] = false
				}
			}
			i = j
		} else {
			i++
		}
	}

	var filtered []string
	for idx, line := range lines {
		if keep[idx] {
			filtered = append(filtered, line)
		}
	}

	var result []string
	prevEmpty := false
	for _, line := range filtered {
		isEmpty := strings.TrimSpace(line) == ""
		if !(isEmpty && prevEmpty) {
			result = append(result, line)
		}
		prevEmpty = isEmpty
	}
	return strings.Join(result, "\n")
}

// extractContexts finds occurrences of each word of term in text and
// returns merged, padded snippets.
func extractContexts(text, term string, ctx int) []string {
	lowerText := strings.ToLower(text)
	spans := []interval{{0, min(len(text), 400)}}

	for _, word := range strings.Fields(term) {
		lw := strings.ToLower(word)
		if lw == "" {
			continue
		}
		re := regexp.MustCompile(regexp.QuoteMeta(lw))
		for _, m := range re.FindAllStringIndex(lowerText, -1) {
			spans = append(spans, interval{m[0], m[1]})
		}
	}

	if len(spans) == 0 {
		return nil
	}

	merged := mergeIntervals(spans, ctx)
	var snippets []string
	fullLen := len(text)

	for _, span := range merged {
		cs := max(0, span.start-ctx)
		ce := min(fullLen, span.end+ctx)
		snippet := strings.TrimSpace(text[cs:ce])
		if cs > 0 {
			snippet = "… " + snippet
		}
		if ce < fullLen {
			snippet += " …"
		}
		snippets = append(snippets, snippet)
	}

	return snippets
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
