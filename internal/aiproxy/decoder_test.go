package aiproxy

import (
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkReader hands out one chunk per Read, then failErr or io.EOF.
type chunkReader struct {
	chunks  [][]byte
	failErr error
	reads   int
	closed  bool
}

func newChunkReader(chunks ...string) *chunkReader {
	r := &chunkReader{}
	for _, chunk := range chunks {
		r.chunks = append(r.chunks, []byte(chunk))
	}
	return r
}

func (r *chunkReader) Read(p []byte) (int, error) {
	r.reads++
	if len(r.chunks) == 0 {
		if r.failErr != nil {
			return 0, r.failErr
		}
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks = r.chunks[1:]
	return n, nil
}

func (r *chunkReader) Close() error {
	r.closed = true
	return nil
}

func collect(progress *[]AnswerResult) ProgressFunc {
	return func(answer AnswerResult) {
		*progress = append(*progress, answer)
	}
}

func TestDecodeContentThenDone(t *testing.T) {
	body := newChunkReader(
		"data: {\"type\":\"content\",\"content\":\"Hi\"}\n\n",
		"data: {\"type\":\"done\",\"content\":\"Hi there\"}\n\n",
	)

	var progress []AnswerResult
	answer, err := Decode(body, collect(&progress))

	require.NoError(t, err)
	assert.Equal(t, AnswerResult{Content: "Hi there", Thinking: ""}, answer)
	assert.Equal(t, []AnswerResult{{Content: "Hi"}, {Content: "Hi there"}}, progress)
	assert.True(t, body.closed)
}

func TestDecodeReassemblesSplitPayload(t *testing.T) {
	body := newChunkReader(
		`data: {"type":"done","cont`,
		`ent":"split `,
		"payload\",\"thinking\":\"t\"}\n",
	)

	var progress []AnswerResult
	answer, err := Decode(body, collect(&progress))

	require.NoError(t, err)
	assert.Equal(t, AnswerResult{Content: "split payload", Thinking: "t"}, answer)
	assert.Len(t, progress, 1)
}

func TestDecodeReassemblesSplitMultiByteContent(t *testing.T) {
	line := []byte("data: {\"type\":\"done\",\"content\":\"naïve ✓\"}\n")
	cut := len("data: {\"type\":\"done\",\"content\":\"naïve ") + 1

	body := &chunkReader{chunks: [][]byte{line[:cut], line[cut:]}}
	answer, err := Decode(body, nil)

	require.NoError(t, err)
	assert.Equal(t, "naïve ✓", answer.Content)
}

func TestDecodeStopsReadingAfterDone(t *testing.T) {
	body := newChunkReader(
		"data: {\"type\":\"done\",\"content\":\"final\"}\n"+
			"data: {\"type\":\"content\",\"content\":\"same chunk, ignored\"}\n",
		"data: {\"type\":\"content\",\"content\":\"next chunk, never read\"}\n",
	)

	var progress []AnswerResult
	answer, err := Decode(body, collect(&progress))

	require.NoError(t, err)
	assert.Equal(t, "final", answer.Content)
	assert.Equal(t, []AnswerResult{{Content: "final"}}, progress)
	assert.Equal(t, 1, body.reads)
	assert.True(t, body.closed)
}

func TestDecodeSkipsMalformedLines(t *testing.T) {
	body := newChunkReader(
		"data: {not json}\n",
		"data: {\"type\":\"done\",\"content\":\"ok\"}\n",
	)

	var progress []AnswerResult
	answer, err := Decode(body, collect(&progress))

	require.NoError(t, err)
	assert.Equal(t, "ok", answer.Content)
	assert.Equal(t, []AnswerResult{{Content: "ok"}}, progress)
}

func TestDecodeIgnoresNonEventLines(t *testing.T) {
	body := newChunkReader(
		": keep-alive\n",
		"event: content\n",
		"data: {\"type\":\"ping\"}\n",
		"data: [DONE]\n",
	)

	var progress []AnswerResult
	answer, err := Decode(body, collect(&progress))

	require.NoError(t, err)
	assert.Equal(t, AnswerResult{}, answer)
	assert.Empty(t, progress)
}

func TestDecodeReportsEventsInOrder(t *testing.T) {
	body := newChunkReader(
		"data: {\"type\":\"content\",\"content\":\"a\"}\n" +
			"data: {\"type\":\"content\",\"content\":\"ab\"}\n" +
			"data: {\"type\":\"content\",\"content\":\"abc\",\"thinking\":\"x\"}\n",
	)

	var progress []AnswerResult
	answer, err := Decode(body, collect(&progress))

	require.NoError(t, err)
	assert.Equal(t, AnswerResult{Content: "abc", Thinking: "x"}, answer)
	assert.Equal(t, []AnswerResult{
		{Content: "a"},
		{Content: "ab"},
		{Content: "abc", Thinking: "x"},
	}, progress)
}

func TestDecodeReplacesThinking(t *testing.T) {
	body := newChunkReader(
		"data: {\"type\":\"content\",\"content\":\"a\",\"thinking\":\"first\"}\n",
		"data: {\"type\":\"content\",\"content\":\"ab\"}\n",
	)

	answer, err := Decode(body, nil)

	require.NoError(t, err)
	assert.Equal(t, AnswerResult{Content: "ab", Thinking: ""}, answer)
}

func TestDecodeEndsWithoutDone(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   AnswerResult
	}{
		{
			name:   "Empty stream",
			chunks: nil,
			want:   AnswerResult{},
		},
		{
			name:   "Last content event wins",
			chunks: []string{"data: {\"type\":\"content\",\"content\":\"partial\"}\n"},
			want:   AnswerResult{Content: "partial"},
		},
		{
			name:   "Unterminated last line is dropped",
			chunks: []string{"data: {\"type\":\"done\",\"content\":\"no newline\"}"},
			want:   AnswerResult{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := newChunkReader(tt.chunks...)

			answer, err := Decode(body, nil)

			require.NoError(t, err)
			assert.Equal(t, tt.want, answer)
			assert.True(t, body.closed)
		})
	}
}

func TestDecodeReadFailure(t *testing.T) {
	readErr := errors.New("connection reset")
	body := newChunkReader("data: {\"type\":\"content\",\"content\":\"so far\"}\n")
	body.failErr = readErr

	answer, err := Decode(body, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, readErr)
	assert.Equal(t, "so far", answer.Content)
	assert.True(t, body.closed)
}

func TestDecodeWithoutBody(t *testing.T) {
	_, err := Decode(nil, nil)
	assert.ErrorIs(t, err, ErrNoStream)

	_, err = Decode(http.NoBody, nil)
	assert.ErrorIs(t, err, ErrNoStream)
}
