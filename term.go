package invidx

import (
	"iter"
	"strings"
	"unicode"
)

// Span is an inclusive byte-offset pair identifying one token's extent in
// its source document.
type Span struct {
	Start uint32
	End   uint32
}

// splitSpans walks text and yields the byte span of every alphanumeric run.
// A run begins at the first alphanumeric byte following a non-alphanumeric
// boundary (or the start of text) and ends at the last byte before the next
// non-alphanumeric character (or the last byte of text).
func splitSpans(text string) iter.Seq[Span] {
	return func(yield func(Span) bool) {
		start := -1

		for i, r := range text {
			if isTermRune(r) {
				if start == -1 {
					start = i
				}
				continue
			}

			if start != -1 {
				if !yield(Span{uint32(start), uint32(i - 1)}) {
					return
				}
				start = -1
			}
		}

		if start != -1 {
			yield(Span{uint32(start), uint32(len(text) - 1)})
		}
	}
}

func isTermRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// foldTerm lower-cases one extracted token to form its term key. BuildSingle
// calls it per token rather than folding the whole document, so spans stay
// byte-accurate against the original text. Folding is per rune, so
// multi-byte UTF-8 runs never get split or corrupted.
func foldTerm(s string) string {
	return strings.ToLower(s)
}
