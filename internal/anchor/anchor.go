// Package anchor converts text selections into durable anchors and re-locates
// them inside edited documents. The matched substring is the authoritative
// anchor; numeric offsets are advisory hints only.
package anchor

import "strings"

// Anchor binds a comment to a passage of a document.
type Anchor struct {
	Text string
	From int
	To   int
}

// Position is the line placement of a located anchor. Lines are 1-based.
// StartLine equals Line for anchors contained in a single line.
type Position struct {
	Line      int // Line of the anchor's last character.
	StartLine int // Line of the anchor's first character.
	Offset    int // Byte offset of the occurrence that was chosen.
}

// Resolve captures the selection [from, to) of doc as an anchor. Out-of-range
// bounds are clamped; an inverted range yields an empty anchor.
func Resolve(doc string, from, to int) Anchor {
	if from < 0 {
		from = 0
	}
	if to > len(doc) {
		to = len(doc)
	}
	if from >= to {
		return Anchor{From: from, To: from}
	}
	return Anchor{Text: doc[from:to], From: from, To: to}
}

// Locate finds text inside doc and returns its line placement, or nil when no
// occurrence exists -- the orphan signal. When hint is non-negative and the
// text occurs more than once, the occurrence closest to hint is chosen, ties
// broken by the first occurrence at or after the hint. Matching is exact:
// no whitespace or case normalization is performed.
func Locate(doc, text string, hint int) *Position {
	if text == "" {
		return nil
	}

	offset := -1
	bestDist := -1
	for i := 0; ; {
		j := strings.Index(doc[i:], text)
		if j < 0 {
			break
		}
		off := i + j

		if hint < 0 {
			offset = off
			break
		}

		dist := off - hint
		if dist < 0 {
			dist = -dist
		}
		switch {
		case bestDist < 0 || dist < bestDist:
			offset, bestDist = off, dist
		case dist == bestDist && offset < hint && off >= hint:
			// Equidistant occurrences straddle the hint; prefer the one at or
			// after it.
			offset = off
		}

		i = off + 1
	}

	if offset < 0 {
		return nil
	}

	return &Position{
		StartLine: lineAt(doc, offset),
		Line:      lineAt(doc, offset+len(text)-1),
		Offset:    offset,
	}
}

// IsOrphaned reports whether text no longer occurs in doc. An empty anchor
// never orphans: only comments anchored to real text can lose their passage.
func IsOrphaned(doc, text string) bool {
	if text == "" {
		return false
	}
	return !strings.Contains(doc, text)
}

// ClickMatches reports whether a clicked passage should open the comment
// anchored at stored. The match is deliberately looser than orphan detection:
// exact equality, or either string containing the other, counts. Losing a
// click target is a minor regression; missing a truly deleted anchor is not.
func ClickMatches(stored, clicked string) bool {
	if stored == "" || clicked == "" {
		return false
	}
	return stored == clicked ||
		strings.Contains(clicked, stored) ||
		strings.Contains(stored, clicked)
}

// lineAt returns the 1-based line number containing the byte at offset.
func lineAt(doc string, offset int) int {
	if offset > len(doc) {
		offset = len(doc)
	}
	return 1 + strings.Count(doc[:offset], "\n")
}
