package aiproxy

import (
	"encoding/json"
	"fmt"
)

// Persona selects the behavioural profile of the remote responder. Values are
// forwarded as-is; the endpoint decides what they mean.
type Persona string

const PersonaDefault Persona = "default"

// Message is one entry of the conversation history.
type Message struct {
	Content string `json:"content"`
	IsAI    bool   `json:"isAI"`
}

// AnswerResult is the best known answer. Content always holds the whole answer
// so far, never a delta.
type AnswerResult struct {
	Content  string `json:"content"`
	Thinking string `json:"thinking,omitempty"`
}

// ProgressFunc receives every cumulative answer in arrival order.
type ProgressFunc func(AnswerResult)

// ImageData is an optional image payload, either a single image or several.
// A single image goes over the wire as a JSON string, several as an array.
type ImageData struct {
	images   []string
	multiple bool
}

// SingleImage wraps one image payload.
func SingleImage(image string) *ImageData {
	return &ImageData{images: []string{image}}
}

// MultipleImages wraps a list of image payloads. The list is sent as an array
// even when it holds one element.
func MultipleImages(images ...string) *ImageData {
	return &ImageData{images: append([]string(nil), images...), multiple: true}
}

// Images returns a copy of the wrapped payloads.
func (d *ImageData) Images() []string {
	if d == nil {
		return nil
	}
	return append([]string(nil), d.images...)
}

// IsMultiple reports whether the payload is sent as an array.
func (d *ImageData) IsMultiple() bool {
	return d != nil && d.multiple
}

func (d ImageData) MarshalJSON() ([]byte, error) {
	if !d.multiple && len(d.images) == 1 {
		return json.Marshal(d.images[0])
	}
	if d.images == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(d.images)
}

func (d *ImageData) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*d = ImageData{images: []string{single}}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("imageData must be a string or an array of strings: %w", err)
	}
	*d = ImageData{images: many, multiple: true}
	return nil
}

// Request is everything a single dispatch sends to the endpoint. Nothing is
// validated locally: an empty history or an unknown persona is the
// endpoint's concern.
type Request struct {
	Messages  []Message  `json:"messages"`
	Persona   Persona    `json:"persona"`
	ImageData *ImageData `json:"imageData,omitempty"`
}

// wireRequest fills in the default persona without touching the caller's
// Request.
func (r Request) wireRequest() Request {
	if r.Persona == "" {
		r.Persona = PersonaDefault
	}
	if r.Messages == nil {
		r.Messages = []Message{}
	}
	return r
}
