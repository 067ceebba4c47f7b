package textextract

import (
	"strings"
	"unicode"
)

// Default chunking parameters, in characters
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Chunk splits text into pieces of at most size runes. Consecutive chunks
// share about overlap runes, and cuts are moved back to the nearest
// whitespace when one exists in the second half of the window.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			for cut := end; cut > start+size/2; cut-- {
				if unicode.IsSpace(runes[cut]) {
					end = cut
					break
				}
			}
		}

		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			chunks = append(chunks, piece)
		}
		if end == len(runes) {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		// begin the next chunk on a word boundary
		for next < end && !unicode.IsSpace(runes[next-1]) {
			next++
		}
		start = next
	}

	return chunks
}
