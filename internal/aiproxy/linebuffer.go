package aiproxy

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// LineBuffer reassembles text lines from arbitrarily split chunks of an
// event stream. A multi-byte UTF-8 sequence cut by a chunk boundary is held in
// carryBytes, an unterminated line in carryText; both are prefixed to the
// next chunk. Invalid bytes decode to U+FFFD.
//
// A LineBuffer belongs to a single stream and is not safe for concurrent use.
type LineBuffer struct {
	decoder    transform.Transformer
	carryBytes []byte
	carryText  string
}

func NewLineBuffer() *LineBuffer {
	return &LineBuffer{decoder: unicode.UTF8.NewDecoder()}
}

// Feed appends chunk and returns every line completed by it, without the
// trailing "\n". Bytes after the last newline stay buffered.
func (b *LineBuffer) Feed(chunk []byte) ([]string, error) {
	text, err := b.decode(chunk)
	if err != nil {
		return nil, err
	}

	b.carryText += text
	if !strings.Contains(b.carryText, "\n") {
		return nil, nil
	}

	lines := strings.Split(b.carryText, "\n")
	b.carryText = lines[len(lines)-1]
	return lines[:len(lines)-1], nil
}

// Remainder returns the buffered text of the unterminated last line.
func (b *LineBuffer) Remainder() string {
	return b.carryText
}

func (b *LineBuffer) decode(chunk []byte) (string, error) {
	src := append(b.carryBytes, chunk...)
	if len(src) == 0 {
		return "", nil
	}

	// every invalid byte can expand to the three-byte replacement character
	dst := make([]byte, 3*len(src)+utf8.UTFMax)
	nDst, nSrc, err := b.decoder.Transform(dst, src, false)
	if err != nil && err != transform.ErrShortSrc {
		return "", fmt.Errorf("failed to decode utf-8 chunk: %w", err)
	}

	b.carryBytes = append([]byte(nil), src[nSrc:]...)
	return string(dst[:nDst]), nil
}
