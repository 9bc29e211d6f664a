package index

import "sort"

// Snippet is an extracted passage plus the byte offsets within it at
// which query terms matched, one Span per match.
type Snippet struct {
	Text       string
	Highlights []Span
}

// Span is a [Start, End) byte range into Snippet.Text. ExtractSnippet
// knows only where each match starts, not its length, so the spans it
// produces are zero-width (Start == End).
type Span struct {
	Start, End int
}

const (
	defaultSnippetLength   = 275
	defaultSnippetVariance = 50
)

// ExtractSnippet finds the densest window of length targetLen (+/-
// variance) in body around the supplied match offsets (byte positions of
// matched terms within body), per §4.2. If body is no longer than
// targetLen+variance, the whole body is returned. matches must be sorted
// ascending; ExtractSnippet sorts a copy defensively.
func ExtractSnippet(body string, matches []int, targetLen, variance int) Snippet {
	if targetLen <= 0 {
		targetLen = defaultSnippetLength
	}
	if variance < 0 {
		variance = defaultSnippetVariance
	}
	if len(body) <= targetLen+variance {
		return Snippet{Text: body, Highlights: matchesToSpans(matches, 0, len(body))}
	}
	if len(matches) == 0 {
		end := targetLen
		if end > len(body) {
			end = len(body)
		}
		return Snippet{Text: body[:end]}
	}
	sorted := append([]int(nil), matches...)
	sort.Ints(sorted)

	bestStart, bestCount := 0, -1
	for _, center := range sorted {
		start := center - targetLen/2
		if start < 0 {
			start = 0
		}
		if start+targetLen > len(body) {
			start = len(body) - targetLen
		}
		end := start + targetLen
		count := countInRange(sorted, start, end)
		if count > bestCount {
			bestCount = count
			bestStart = start
		}
	}
	end := bestStart + targetLen
	if end > len(body) {
		end = len(body)
	}
	start := snapToRuneBoundary(body, bestStart, false)
	endSnapped := snapToRuneBoundary(body, end, true)
	return Snippet{
		Text:       body[start:endSnapped],
		Highlights: matchesToSpans(sorted, start, endSnapped),
	}
}

func countInRange(sorted []int, start, end int) int {
	lo := sort.SearchInts(sorted, start)
	hi := sort.SearchInts(sorted, end)
	return hi - lo
}

func matchesToSpans(matches []int, windowStart, windowEnd int) []Span {
	var spans []Span
	for _, m := range matches {
		if m >= windowStart && m < windowEnd {
			spans = append(spans, Span{Start: m - windowStart, End: m - windowStart})
		}
	}
	return spans
}

// snapToRuneBoundary nudges an offset to the nearest valid UTF-8 rune
// boundary, scanning backward if forward is false (for a start offset,
// which must not skip past intended content) or forward otherwise (for
// an end offset).
func snapToRuneBoundary(s string, offset int, forward bool) int {
	if offset <= 0 {
		return 0
	}
	if offset >= len(s) {
		return len(s)
	}
	for offset > 0 && offset < len(s) && !isRuneStart(s[offset]) {
		if forward {
			offset++
		} else {
			offset--
		}
	}
	return offset
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
