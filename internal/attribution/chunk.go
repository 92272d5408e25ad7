package attribution

import (
	"strings"
	"unicode/utf8"
)

// ChunkText splits text into segments of at most maxChars runes, breaking
// only at newlines. Text that already fits is returned as a single verbatim
// element. A line longer than maxChars becomes its own oversized chunk rather
// than being cut. Blank lines never form a chunk of their own: they are
// carried into the next chunk, or appended to the last one at the end of the
// text, even when that overruns the budget. Joining the result with "\n"
// reproduces text exactly.
func ChunkText(text string, maxChars int) []string {
	if utf8.RuneCountInString(text) <= maxChars {
		return []string{text}
	}

	lines := strings.Split(text, "\n")
	chunks := make([]string, 0, len(lines)/8+1)

	var cur []string
	size := 0
	content := false
	for _, line := range lines {
		n := utf8.RuneCountInString(line)
		if content && size+1+n > maxChars {
			chunks = append(chunks, strings.Join(cur, "\n"))
			cur = cur[:0]
			size = 0
			content = false
		}
		if len(cur) > 0 {
			size++
		}
		cur = append(cur, line)
		size += n
		if strings.TrimSpace(line) != "" {
			content = true
		}
	}

	rest := strings.Join(cur, "\n")
	if !content && len(chunks) > 0 {
		chunks[len(chunks)-1] += "\n" + rest
	} else {
		chunks = append(chunks, rest)
	}

	return chunks
}
