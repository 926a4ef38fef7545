package aiproxy

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		want      StreamEvent
		expectErr bool
	}{
		{
			name: "Content event",
			line: `data: {"type":"content","content":"Hi"}`,
			want: StreamEvent{Kind: EventContent, Answer: AnswerResult{Content: "Hi"}},
		},
		{
			name: "Done event with thinking",
			line: `data: {"type":"done","content":"Hi there","thinking":"greeting"}`,
			want: StreamEvent{Kind: EventDone, Answer: AnswerResult{Content: "Hi there", Thinking: "greeting"}},
		},
		{
			name: "Payload is trimmed",
			line: "data:   {\"type\":\"content\",\"content\":\"x\"}  \r",
			want: StreamEvent{Kind: EventContent, Answer: AnswerResult{Content: "x"}},
		},
		{
			name: "End sentinel is ignored",
			line: "data: [DONE]",
			want: StreamEvent{Kind: EventUnknown},
		},
		{
			name: "Unknown event type is ignored",
			line: `data: {"type":"ping"}`,
			want: StreamEvent{Kind: EventUnknown},
		},
		{
			name: "Other SSE fields are ignored",
			line: "event: content",
			want: StreamEvent{Kind: EventUnknown},
		},
		{
			name: "Data without the space is not an event line",
			line: `data:{"type":"content","content":"x"}`,
			want: StreamEvent{Kind: EventUnknown},
		},
		{
			name: "Blank line",
			line: "",
			want: StreamEvent{Kind: EventUnknown},
		},
		{
			name:      "Malformed JSON",
			line:      `data: {"type":"content","content":`,
			want:      StreamEvent{Kind: EventUnknown},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.line)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteEventIsReadBack(t *testing.T) {
	var buf bytes.Buffer
	answer := AnswerResult{Content: "line one\nline two", Thinking: "hmm"}

	require.NoError(t, WriteEvent(&buf, EventDone, answer))
	require.NoError(t, WriteDone(&buf))

	lines := strings.Split(buf.String(), "\n")
	require.Len(t, lines, 5)

	event, err := ParseLine(lines[0])
	require.NoError(t, err)
	assert.Equal(t, StreamEvent{Kind: EventDone, Answer: answer}, event)
	assert.Equal(t, "", lines[1])
	assert.Equal(t, "data: [DONE]", lines[2])
}

func TestWriteEventRejectsUnknownKind(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WriteEvent(&buf, EventUnknown, AnswerResult{}))
	assert.Zero(t, buf.Len())
}
