// Package chunker splits normalized markdown documents into retrieval-sized
// chunks while preserving the heading hierarchy each chunk was emitted under.
// Splitting is a pure function over the document text: no I/O, no shared
// state.
package chunker

import (
	"regexp"
	"strings"
)

// DefaultChunkSize is the character budget per chunk when the caller passes
// zero. Matches the size used for course content ingestion.
const DefaultChunkSize = 1000

// overlapLines is the number of trailing lines carried into the next chunk
// after a size-triggered split, so context survives the boundary.
const overlapLines = 5

// headingPattern matches an ATX heading: 1–6 marker characters followed by
// whitespace and the heading text.
var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// Metadata is the document-level metadata attached to every chunk emitted
// from one document.
type Metadata struct {
	// Title is the document title from front-matter, or the file stem.
	Title string
	// SourceFile is the file name the chunk came from.
	SourceFile string
	// Week is the coarse grouping key (e.g. "week-01-02"), or "unknown".
	Week string
	// URL is the canonical site URL for the document.
	URL string
	// Type is the content-type tag (e.g. "course_content").
	Type string
}

// Chunk is the atomic retrieval unit produced by Split.
type Chunk struct {
	// Content is the trimmed chunk text. Never empty.
	Content string
	// Headers is the active heading stack at emission time, outermost first.
	// Length is bounded by the markdown heading depth (0–6).
	Headers []string
	// Section is Headers joined by " > ", or "Root" when the stack is empty.
	Section string
	// Meta is the document-level metadata shared by all chunks of a document.
	Meta Metadata
}

// Split partitions content into an ordered sequence of chunks.
//
// The document is scanned line by line with three pieces of state: a buffer
// of pending lines, a running character-size estimate, and a heading stack.
// A heading line flushes the buffer, then truncates the stack to level-1
// entries and appends the new heading (outline semantics: a deeper heading
// replaces only its own level and below, a shallower one prunes its
// descendants). When the buffer exceeds chunkSize it is flushed under the
// current stack and reseeded with the last up-to-5 lines as overlap. The
// remaining buffer is flushed at end of input.
//
// An empty or whitespace-only document yields a nil slice; callers must
// treat that as "no content to index" rather than an error.
func Split(content string, meta Metadata, chunkSize int) []Chunk {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var (
		chunks  []Chunk
		buffer  []string
		size    int
		headers []string
	)

	flush := func() {
		text := strings.TrimSpace(strings.Join(buffer, "\n"))
		if text == "" {
			return
		}
		chunks = append(chunks, Chunk{
			Content: text,
			Headers: append([]string(nil), headers...),
			Section: sectionOf(headers),
			Meta:    meta,
		})
	}

	for _, line := range strings.Split(content, "\n") {
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			if len(buffer) > 0 && size > 0 {
				flush()
			}

			level := len(m[1])
			text := strings.TrimSpace(m[2])
			if level-1 < len(headers) {
				headers = headers[:level-1]
			}
			headers = append(headers, text)

			// The heading line seeds the new buffer.
			buffer = []string{line}
			size = len(line)
			continue
		}

		buffer = append(buffer, line)
		size += len(line) + 1 // +1 for the implied line separator

		if size > chunkSize {
			flush()

			// Carry trailing context into the next chunk.
			start := len(buffer) - overlapLines
			if start < 0 {
				start = 0
			}
			buffer = append([]string(nil), buffer[start:]...)
			size = 0
			for _, l := range buffer {
				size += len(l) + 1
			}
		}
	}

	if len(buffer) > 0 {
		flush()
	}

	return chunks
}

// sectionOf renders a heading stack as the section label stored with a chunk.
func sectionOf(headers []string) string {
	if len(headers) == 0 {
		return "Root"
	}
	return strings.Join(headers, " > ")
}
