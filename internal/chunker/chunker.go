package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrUnreadable is returned when content cannot be split because it is not
// valid UTF-8 text.
var ErrUnreadable = errors.New("chunker: content is not valid UTF-8")

// ErrInvalidConfig is returned for chunk size policies that cannot guarantee
// forward progress.
var ErrInvalidConfig = errors.New("chunker: invalid config")

// Config controls chunking behavior. Sizes are measured in characters (runes).
type Config struct {
	ChunkSize    int // Maximum chunk size.
	ChunkOverlap int // Characters repeated from the end of the previous chunk.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    6000,
		ChunkOverlap: 0,
	}
}

// Validate checks that the policy always advances through the content.
// Overlap must stay below half the chunk size.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", ErrInvalidConfig, c.ChunkOverlap)
	}
	if c.ChunkOverlap > 0 && 2*c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk overlap %d must be less than half of chunk size %d", ErrInvalidConfig, c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// Chunk is a contiguous slice of the document content.
type Chunk struct {
	Index int    // Sequence number within the document, from 0.
	Text  string // content[Start:End]
	Start int    // Byte offset of the first byte.
	End   int    // Byte offset one past the last byte.
}

// Len returns the chunk length in runes.
func (c Chunk) Len() int {
	return utf8.RuneCountInString(c.Text)
}

// Split cuts content into ordered chunks of at most cfg.ChunkSize runes.
//
// The output depends only on content and cfg. Without overlap the chunks tile
// the content exactly. With overlap, chunk i+1 starts exactly cfg.ChunkOverlap
// runes before chunk i ends. Empty content yields no chunks.
func Split(content string, cfg Config) ([]Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if content == "" {
		return nil, nil
	}
	if !utf8.ValidString(content) {
		return nil, ErrUnreadable
	}

	var chunks []Chunk
	start := 0
	for {
		end := advance(content, start, cfg.ChunkSize)
		if end < len(content) {
			// Never cut before the window midpoint so chunks stay reasonably full.
			floor := advance(content, start, cfg.ChunkSize/2)
			end = cutPoint(content, floor, end)
		}

		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Text:  content[start:end],
			Start: start,
			End:   end,
		})
		if end >= len(content) {
			break
		}

		next := end
		if cfg.ChunkOverlap > 0 {
			next = retreat(content, end, cfg.ChunkOverlap)
		}
		start = next
	}

	return chunks, nil
}

var sentenceEnds = []string{". ", "! ", "? ", ".\n"}

// cutPoint picks the preferred boundary inside content[floor:end]. The result
// is always greater than floor and at most end.
func cutPoint(content string, floor, end int) int {
	window := content[floor:end]

	if i := strings.LastIndex(window, "\n\n"); i >= 0 {
		return floor + i + 2
	}

	best := -1
	for _, sep := range sentenceEnds {
		if i := strings.LastIndex(window, sep); i > best {
			best = i
		}
	}
	if best >= 0 {
		return floor + best + 2
	}

	if i := strings.LastIndexFunc(window, unicode.IsSpace); i >= 0 {
		_, size := utf8.DecodeRuneInString(window[i:])
		return floor + i + size
	}

	return end
}

// advance returns the byte offset n runes after from, capped at len(s).
func advance(s string, from, n int) int {
	i := from
	for n > 0 && i < len(s) {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		n--
	}
	return i
}

// retreat returns the byte offset n runes before from, floored at 0.
func retreat(s string, from, n int) int {
	i := from
	for n > 0 && i > 0 {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
		n--
	}
	return i
}
