package aiproxy

import (
	"fmt"
	"io"
	"net/http"

	"github.com/deepgram/aiproxy/internal/logger"
	"github.com/deepgram/aiproxy/internal/metrics"
)

const readChunkSize = 4096

// Decode reads an event stream from body until a done event or the end of
// the stream and returns the last answer seen. Each content or done event
// replaces the running answer and is reported to onProgress, which may be
// nil. Nothing is read after a done event. Decode closes body on every path.
//
// A stream that ends without a done event is not an error: the last
// accumulated answer, possibly empty, is returned. An unterminated last line
// is discarded.
func Decode(body io.ReadCloser, onProgress ProgressFunc) (AnswerResult, error) {
	if body == nil || body == http.NoBody {
		return AnswerResult{}, ErrNoStream
	}
	defer body.Close()

	log := logger.For(logger.STREAM)

	var answer AnswerResult
	lines := NewLineBuffer()
	chunk := make([]byte, readChunkSize)

	for {
		n, readErr := body.Read(chunk)
		if n > 0 {
			complete, err := lines.Feed(chunk[:n])
			if err != nil {
				return answer, err
			}

			for _, line := range complete {
				event, err := ParseLine(line)
				if err != nil {
					log.Debug().Err(err).Str("line", line).Msg("Skipping malformed event line")
					metrics.StreamEventsTotal.WithLabelValues("malformed").Inc()
					continue
				}
				if event.Kind == EventUnknown {
					continue
				}

				metrics.StreamEventsTotal.WithLabelValues(event.Kind.String()).Inc()
				answer = event.Answer
				if onProgress != nil {
					onProgress(answer)
				}

				if event.Kind == EventDone {
					log.Trace().Int("content_length", len(answer.Content)).Msg("Stream terminated by done event")
					return answer, nil
				}
			}
		}

		if readErr == io.EOF {
			if rest := lines.Remainder(); rest != "" {
				log.Debug().Int("bytes", len(rest)).Msg("Stream ended inside a line")
			}
			return answer, nil
		}
		if readErr != nil {
			return answer, fmt.Errorf("failed to read stream: %w", readErr)
		}
	}
}
