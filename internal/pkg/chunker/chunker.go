// Package chunker splits extracted document text into overlapping passages
// that end on sentence boundaries.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	DefaultTargetSize = 1000
	DefaultOverlap    = 200

	// charsPerWord converts the character overlap budget into a word count.
	charsPerWord = 6
)

var sentenceEnd = regexp.MustCompile(`[.!?]+`)

type Chunker struct {
	TargetSize int
	Overlap    int
}

// New returns a Chunker, falling back to the defaults for non-positive sizes.
func New(targetSize, overlap int) Chunker {
	if targetSize <= 0 {
		targetSize = DefaultTargetSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	return Chunker{TargetSize: targetSize, Overlap: overlap}
}

// Split is shorthand for New(targetSize, overlap).Split(text).
func Split(text string, targetSize, overlap int) []string {
	return New(targetSize, overlap).Split(text)
}

// Split returns the chunks of text in document order. Sizes are counted in
// runes over the joined text, separators included. A sentence longer than TargetSize is never truncated; it becomes its
// own oversized chunk.
func (c Chunker) Split(text string) []string {
	var (
		chunks  []string
		current string
		size    int
	)
	overlapWords := c.Overlap / charsPerWord

	for _, sentence := range sentences(text) {
		n := utf8.RuneCountInString(sentence)
		if current != "" {
			// the joining space counts toward the buffer length
			n++
		}
		if size+n > c.TargetSize && current != "" {
			chunks = append(chunks, strings.TrimSpace(current))
			current = joinNonEmpty(tailWords(current, overlapWords), sentence)
			size = utf8.RuneCountInString(current)
			continue
		}
		current = joinNonEmpty(current, sentence)
		size += n
	}

	if rest := strings.TrimSpace(current); rest != "" {
		chunks = append(chunks, rest)
	}
	return chunks
}

// sentences splits on runs of terminal punctuation and re-terminates every
// non-empty fragment with a period.
func sentences(text string) []string {
	parts := sentenceEnd.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p+".")
	}
	return out
}

func tailWords(s string, n int) string {
	if n <= 0 {
		return ""
	}
	words := strings.Fields(s)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}

func joinNonEmpty(a, b string) string {
	if a == "" {
		return b
	}
	return a + " " + b
}
