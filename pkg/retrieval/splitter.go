package retrieval

import "strings"

// Splitter defaults.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Splitter breaks text into overlapping chunks for embedding.
//
// It splits recursively on progressively finer separators (paragraph,
// line, word, character) so chunks break at natural boundaries where
// possible.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// SplitterOption configures a Splitter.
type SplitterOption func(*Splitter)

// WithChunkSize sets the maximum chunk length in bytes.
func WithChunkSize(n int) SplitterOption {
	return func(s *Splitter) { s.chunkSize = n }
}

// WithChunkOverlap sets the overlap between consecutive chunks.
func WithChunkOverlap(n int) SplitterOption {
	return func(s *Splitter) { s.overlap = n }
}

// NewSplitter creates a splitter with chunk size 1000 and overlap 200.
func NewSplitter(opts ...SplitterOption) *Splitter {
	s := &Splitter{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: []string{"\n\n", "\n", " ", ""},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 2
	}
	return s
}

// Split breaks text into chunks. Empty chunks are dropped.
func (s *Splitter) Split(text string) []string {
	pieces := s.split(text, s.separators)

	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *Splitter) split(text string, separators []string) []string {
	if len(text) <= s.chunkSize {
		return []string{text}
	}
	if len(separators) == 0 {
		return s.hardSplit(text)
	}

	sep := separators[0]
	rest := separators[1:]
	if sep == "" {
		return s.hardSplit(text)
	}

	parts := strings.Split(text, sep)
	if len(parts) == 1 {
		return s.split(text, rest)
	}

	// Merge parts into chunks up to chunkSize, carrying overlap forward.
	var chunks []string
	var current strings.Builder
	for _, part := range parts {
		candidate := part
		if current.Len() > 0 {
			candidate = current.String() + sep + part
		}
		if len(candidate) <= s.chunkSize {
			current.Reset()
			current.WriteString(candidate)
			continue
		}

		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			tail := overlapTail(current.String(), s.overlap)
			current.Reset()
			if tail != "" {
				current.WriteString(tail)
				current.WriteString(sep)
			}
		}

		// A single part can still exceed the chunk size.
		if current.Len()+len(part) > s.chunkSize {
			for _, sub := range s.split(part, rest) {
				if current.Len()+len(sub) <= s.chunkSize {
					current.WriteString(sub)
					continue
				}
				if current.Len() > 0 {
					chunks = append(chunks, current.String())
					current.Reset()
				}
				current.WriteString(sub)
			}
		} else {
			current.WriteString(part)
		}
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// hardSplit cuts text at fixed offsets with overlap, ignoring boundaries.
func (s *Splitter) hardSplit(text string) []string {
	var chunks []string
	step := s.chunkSize - s.overlap
	for start := 0; start < len(text); start += step {
		end := start + s.chunkSize
		if end >= len(text) {
			chunks = append(chunks, text[start:])
			break
		}
		chunks = append(chunks, text[start:end])
	}
	return chunks
}

// overlapTail returns the last n bytes of text, trimmed to a space
// boundary when one exists.
func overlapTail(text string, n int) string {
	if n <= 0 || len(text) <= n {
		if n <= 0 {
			return ""
		}
		return text
	}
	tail := text[len(text)-n:]
	if idx := strings.IndexByte(tail, ' '); idx >= 0 && idx < len(tail)-1 {
		tail = tail[idx+1:]
	}
	return tail
}
