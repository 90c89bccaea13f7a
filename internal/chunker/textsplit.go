package chunker

import "strings"

const (
	// textOverlap is the character overlap between adjacent fallback chunks.
	textOverlap = 200
	// bytesPerToken approximates cl100k_base density for sizing character
	// windows before the real count is taken.
	bytesPerToken = 4
)

// textFallback splits a file that could not be parsed structurally into
// plain text chunks with a small overlap, preferring paragraph and line
// boundaries.
func (c *StructuralChunker) textFallback(path, lang string, src []byte) []Chunk {
	st := &fileState{path: path, lang: lang, src: src, lines: lineOffsets(src)}
	window := c.maxTokens * bytesPerToken

	var chunks []Chunk
	pos := 0
	for pos < len(src) {
		end := pos + window
		if end >= len(src) {
			end = len(src)
		} else {
			end = breakPoint(src, pos, end)
		}
		chunks = append(chunks, c.finish(st, span{start: pos, end: end, kind: "text"}))
		if end >= len(src) {
			break
		}
		next := end - textOverlap
		if next <= pos {
			next = end
		}
		pos = next
	}
	return chunks
}

// splitLargeText carves an oversized leaf span (a giant string literal, a
// minified line) into budget-sized pieces at line boundaries where
// possible. Unlike the text fallback these pieces do not overlap, so the
// file's chunks still tile its byte range.
func (c *StructuralChunker) splitLargeText(st *fileState, start, end int) []span {
	window := c.maxTokens * bytesPerToken
	var out []span
	pos := start
	for pos < end {
		cut := pos + window
		if cut >= end {
			cut = end
		} else {
			cut = breakPoint(st.src, pos, cut)
		}
		out = append(out, span{
			start:  pos,
			end:    cut,
			tokens: CountTokens(string(st.src[pos:cut])),
			kind:   "large-text",
		})
		pos = cut
	}
	return out
}

// breakPoint moves a proposed cut backwards to the nearest paragraph break,
// newline or space, searching at most half the window. Returns the original
// cut when no boundary is found.
func breakPoint(src []byte, start, cut int) int {
	floor := start + (cut-start)/2
	window := string(src[floor:cut])
	for _, sep := range []string{"\n\n", "\n", " "} {
		if i := strings.LastIndex(window, sep); i >= 0 {
			return floor + i + len(sep)
		}
	}
	return cut
}
