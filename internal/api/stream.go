package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mccartykim/wonderback/internal/analysis"
)

// upgrader configures the WebSocket upgrade for /stream. Origin checking
// is handled by the CORS middleware.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

const (
	defaultStreamBufferSize = 20
	streamWriteTimeout      = 10 * time.Second
)

// streamMessage is an inbound message on the /stream socket.
type streamMessage struct {
	Type    string                   `json:"type"` // utterance | ping
	Event   analysis.UtteranceEvent  `json:"event,omitempty"`
	Context *analysis.RequestContext `json:"context,omitempty"`
}

// streamIssue is an outbound issue notification.
type streamIssue struct {
	Type string          `json:"type"` // issue | pong
	Data *analysis.Issue `json:"data,omitempty"`
}

// handleStream is the live analysis channel. The device sends utterance
// events as they occur; the server buffers them and runs analysis when the
// buffer fills or the screen changes, pushing each issue back as its own
// message.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close() //nolint:errcheck // Read-side close

	if s.wsCfg.MaxMessageSize > 0 {
		conn.SetReadLimit(int64(s.wsCfg.MaxMessageSize))
	}

	s.logger.Info("stream client connected", "remote", r.RemoteAddr)

	var buffer []analysis.UtteranceEvent
	var lastContext analysis.RequestContext

	for {
		var msg streamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("stream read error", "error", err)
			} else {
				s.logger.Info("stream client disconnected")
			}
			return
		}

		switch msg.Type {
		case "utterance":
			buffer = append(buffer, msg.Event)
			if msg.Context != nil {
				lastContext = *msg.Context
			}
			if s.shouldFlush(buffer, msg.Event.Navigation) {
				s.flushStream(r, conn, buffer, lastContext)
				buffer = buffer[:0]
			}

		case "ping":
			if err := s.writeStream(conn, streamIssue{Type: "pong"}); err != nil {
				return
			}
		}
	}
}

// shouldFlush triggers analysis when the buffer reaches the configured
// size or the device navigated to a new screen or window.
func (s *Server) shouldFlush(buffer []analysis.UtteranceEvent, nav analysis.NavigationType) bool {
	threshold := s.settings.Current().BufferSize
	if threshold <= 0 {
		threshold = defaultStreamBufferSize
	}
	if len(buffer) >= threshold {
		return true
	}
	return nav == analysis.NavScreenChange || nav == analysis.NavWindowChange
}

// flushStream analyzes the buffered utterances and pushes each issue back
// over the socket.
func (s *Server) flushStream(r *http.Request, conn *websocket.Conn, buffer []analysis.UtteranceEvent, reqCtx analysis.RequestContext) {
	req := &analysis.Request{
		Utterances: append([]analysis.UtteranceEvent(nil), buffer...),
		Context:    reqCtx,
	}

	resp, err := s.analyzer.Analyze(r.Context(), req)
	if err != nil {
		s.logger.Warn("stream analysis failed", "error", err)
		return
	}

	s.recordAnalysis(req, resp)

	for i := range resp.Issues {
		if err := s.writeStream(conn, streamIssue{Type: "issue", Data: &resp.Issues[i]}); err != nil {
			s.logger.Warn("stream write failed", "error", err)
			return
		}
	}
}

func (s *Server) writeStream(conn *websocket.Conn, v any) error {
	//nolint:errcheck // Deadline set best-effort; WriteJSON surfaces failures
	conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteJSON(v)
}
