package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/deepgram/aiproxy/internal/aiproxy"
	"github.com/deepgram/aiproxy/internal/api/v1/handlers/chat"
	"github.com/deepgram/aiproxy/internal/connections"
	"github.com/deepgram/aiproxy/internal/logger"
	"github.com/deepgram/aiproxy/pkg/httpext"
	"github.com/gorilla/websocket"
)

const maxMessageSize = 32 << 20

// Frame types sent to relay clients.
const (
	FrameSession = "session"
	FrameContent = "content"
	FrameDone    = "done"
	FrameError   = "error"
)

// Frame is one server-to-client message. Error frames set Error and, for
// rate limits, ErrorType "rateLimit".
type Frame struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Content   string `json:"content,omitempty"`
	Thinking  string `json:"thinking,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorType string `json:"errorType,omitempty"`
}

func answerFrame(frameType string, answer aiproxy.AnswerResult) Frame {
	return Frame{Type: frameType, Content: answer.Content, Thinking: answer.Thinking}
}

// NewUpgrader accepts any origin when allowedOrigins is empty. Requests
// without an Origin header are not from a browser and are always accepted.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}

	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if len(allowed) == 0 || origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

// HandleRelayWebSocket serves one relay connection. Every inbound text frame
// is an aiproxy request; requests on one connection are answered in order.
func HandleRelayWebSocket(dispatcher chat.Dispatcher, manager *connections.Manager, upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request) {
	log := logger.For(logger.GATEWAY)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("client_ip", r.RemoteAddr).Msg("Could not upgrade connection")
		return
	}

	session := manager.Open(conn)
	log = log.With().Str("session_id", session.ID).Logger()
	log.Info().Str("client_ip", r.RemoteAddr).Int("open_sessions", manager.Count()).Msg("Relay session opened")

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		manager.Close(session)
		conn.Close()
		log.Info().Dur("duration", time.Since(session.StartedAt)).Msg("Relay session closed")
	}()

	timeouts := manager.GetTimeouts()
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(timeouts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(timeouts.PongWait))
	})

	if err := session.WriteJSON(Frame{Type: FrameSession, SessionID: session.ID}); err != nil {
		return
	}

	go func() {
		ticker := time.NewTicker(timeouts.PingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := session.Ping(); err != nil {
					cancel()
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Unexpected WebSocket closure")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		if err := relay(ctx, dispatcher, session, message); err != nil {
			log.Debug().Err(err).Msg("Failed to write to relay client")
			return
		}

		// a long dispatch must not eat into the keepalive window
		conn.SetReadDeadline(time.Now().Add(timeouts.PongWait))
	}
}

// relay answers one request. Only write failures are returned, and the first
// one cancels the dispatch.
func relay(ctx context.Context, dispatcher chat.Dispatcher, session *connections.Session, message []byte) error {
	var req aiproxy.Request
	if err := json.Unmarshal(message, &req); err != nil {
		return session.WriteJSON(Frame{Type: FrameError, Error: "Invalid request format"})
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var writeErr error
	outcome := dispatcher.Dispatch(ctx, req, func(answer aiproxy.AnswerResult) {
		if writeErr != nil {
			return
		}
		if writeErr = session.WriteJSON(answerFrame(FrameContent, answer)); writeErr != nil {
			cancel()
		}
	})
	if writeErr != nil {
		return writeErr
	}

	if outcome.RateLimited() {
		return session.WriteJSON(Frame{
			Type:      FrameError,
			Error:     outcome.Err.Error(),
			ErrorType: httpext.ErrorTypeRateLimit,
		})
	}

	return session.WriteJSON(answerFrame(FrameDone, outcome.Answer))
}
