package aiproxy

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"

	eventTypeContent = "content"
	eventTypeDone    = "done"
)

// EventKind tags a decoded stream line.
type EventKind int

const (
	// EventUnknown covers every line that carries no answer: lines without the
	// data prefix, the [DONE] sentinel and unrecognised event types.
	EventUnknown EventKind = iota
	EventContent
	EventDone
)

func (k EventKind) String() string {
	switch k {
	case EventContent:
		return eventTypeContent
	case EventDone:
		return eventTypeDone
	default:
		return "unknown"
	}
}

// StreamEvent is one decoded event. Answer is only meaningful for EventContent
// and EventDone.
type StreamEvent struct {
	Kind   EventKind
	Answer AnswerResult
}

type wireEvent struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	Thinking string `json:"thinking,omitempty"`
}

// ParseLine decodes a single event-stream line. It only returns an error when
// a data line holds malformed JSON; callers drop such lines.
func ParseLine(line string) (StreamEvent, error) {
	if !strings.HasPrefix(line, dataPrefix) {
		return StreamEvent{}, nil
	}

	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if payload == doneSentinel {
		return StreamEvent{}, nil
	}

	var event wireEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return StreamEvent{}, fmt.Errorf("malformed event payload: %w", err)
	}

	answer := AnswerResult{Content: event.Content, Thinking: event.Thinking}
	switch event.Type {
	case eventTypeContent:
		return StreamEvent{Kind: EventContent, Answer: answer}, nil
	case eventTypeDone:
		return StreamEvent{Kind: EventDone, Answer: answer}, nil
	default:
		return StreamEvent{}, nil
	}
}

// WriteEvent writes answer as a content or done event, followed by the blank
// line that ends an SSE event.
func WriteEvent(w io.Writer, kind EventKind, answer AnswerResult) error {
	if kind != EventContent && kind != EventDone {
		return fmt.Errorf("cannot encode %s event", kind)
	}

	payload, err := json.Marshal(wireEvent{
		Type:     kind.String(),
		Content:  answer.Content,
		Thinking: answer.Thinking,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = fmt.Fprintf(w, "%s%s\n\n", dataPrefix, payload)
	return err
}

// WriteDone writes the end-of-stream sentinel.
func WriteDone(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s%s\n\n", dataPrefix, doneSentinel)
	return err
}
