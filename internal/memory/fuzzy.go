package memory

import (
	"strings"
	"unicode"
)

// fuzzyReplace attempts an edit with whitespace-tolerant matching: both the
// content and oldText are whitespace-normalized for comparison, then the
// unique match is mapped back to the original bytes for replacement.
// Returns false when the normalized oldText does not match exactly once.
func fuzzyReplace(content, oldText, newText string) (string, bool) {
	normContent := normalizeWhitespace(content)
	normOld := normalizeWhitespace(oldText)

	if normOld == "" || strings.Count(normContent, normOld) != 1 {
		return "", false
	}

	normStart := strings.Index(normContent, normOld)
	normEnd := normStart + len(normOld)

	origStart, origEnd := mapNormalizedRange(content, normStart, normEnd)

	var b strings.Builder
	b.Grow(len(content) - (origEnd - origStart) + len(newText))
	b.WriteString(content[:origStart])
	b.WriteString(newText)
	b.WriteString(content[origEnd:])
	return b.String(), true
}

// normalizeWhitespace collapses every run of whitespace into a single space.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// mapNormalizedRange maps a byte range in the normalized text back to a byte
// range in the original text. Each whitespace run in the original counts as
// one space in the normalized form; leading whitespace is skipped entirely.
func mapNormalizedRange(original string, normStart, normEnd int) (int, int) {
	normPos := 0
	origStart, origEnd := 0, len(original)
	started := false
	inWhitespace := false

	i := 0
	// Leading whitespace does not appear in normalized text.
	for i < len(original) && isSpaceByte(original[i]) {
		i++
	}

	for i < len(original) {
		if isSpaceByte(original[i]) {
			if !inWhitespace {
				if normPos == normStart && !started {
					origStart = i
					started = true
				}
				normPos++ // the single space in normalized form
				if normPos == normEnd {
					for i < len(original) && isSpaceByte(original[i]) {
						i++
					}
					return origStart, i
				}
				inWhitespace = true
			}
			i++
			continue
		}

		inWhitespace = false
		if normPos == normStart && !started {
			origStart = i
			started = true
		}
		normPos++
		i++
		if normPos == normEnd {
			return origStart, i
		}
	}

	return origStart, origEnd
}

func isSpaceByte(b byte) bool {
	return b < unicode.MaxASCII && unicode.IsSpace(rune(b))
}
