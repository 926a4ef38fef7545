package chat

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/deepgram/aiproxy/internal/aiproxy"
	"github.com/deepgram/aiproxy/internal/logger"
	"github.com/deepgram/aiproxy/pkg/httpext"
)

const maxRequestBodySize = 32 << 20

// Dispatcher is the part of aiproxy.Client the relay handlers need.
type Dispatcher interface {
	Dispatch(ctx context.Context, req aiproxy.Request, onProgress aiproxy.ProgressFunc) aiproxy.Outcome
}

// HandleAIProxy relays one request to the inference endpoint. Clients that
// accept text/event-stream get every progress update as a content event and
// the final answer as a done event; everyone else gets a single JSON answer.
// Fallback outcomes are relayed as the apology answer with a 200.
func HandleAIProxy(dispatcher Dispatcher, w http.ResponseWriter, r *http.Request) {
	log := logger.For(logger.GATEWAY)

	var req aiproxy.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("Client sent malformed JSON request")
		httpext.JsonError(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	flusher, canFlush := w.(http.Flusher)
	stream := canFlush && acceptsEventStream(r.Header.Get("Accept"))

	log.Info().
		Int("message_count", len(req.Messages)).
		Str("client_ip", r.RemoteAddr).
		Bool("stream", stream).
		Msg("Received ai-proxy request")

	if !stream {
		outcome := dispatcher.Dispatch(r.Context(), req, nil)
		if outcome.RateLimited() {
			httpext.JsonRateLimitError(w, outcome.Err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(outcome.Answer); err != nil {
			log.Error().Err(err).Msg("Failed to encode response")
		}
		return
	}

	started := false
	start := func() {
		if started {
			return
		}
		started = true
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
	}

	outcome := dispatcher.Dispatch(r.Context(), req, func(answer aiproxy.AnswerResult) {
		start()
		if err := aiproxy.WriteEvent(w, aiproxy.EventContent, answer); err != nil {
			log.Debug().Err(err).Msg("Failed to relay content event")
			return
		}
		flusher.Flush()
	})

	if outcome.RateLimited() {
		if !started {
			httpext.JsonRateLimitError(w, outcome.Err.Error())
			return
		}
		log.Warn().Msg("Rate limited after the stream started")
		return
	}

	start()
	if err := aiproxy.WriteEvent(w, aiproxy.EventDone, outcome.Answer); err != nil {
		log.Debug().Err(err).Msg("Failed to relay done event")
		return
	}
	if err := aiproxy.WriteDone(w); err != nil {
		log.Debug().Err(err).Msg("Failed to relay end of stream")
		return
	}
	flusher.Flush()

	log.Info().
		Str("client_ip", r.RemoteAddr).
		Str("outcome", outcome.Kind.String()).
		Msg("ai-proxy request relayed")
}

// acceptsEventStream reports whether any media range in an Accept header is
// text/event-stream.
func acceptsEventStream(accept string) bool {
	for _, part := range strings.Split(accept, ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && aiproxy.IsEventStream(mediaType) {
			return true
		}
	}
	return false
}
