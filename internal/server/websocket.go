package server

import (
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/smhanov/contextual"
)

const maxMessageBytes = 64 << 10

var upgrader = websocket.Upgrader{ //nolint:gochecknoglobals
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the widget may be served from anywhere
	},
}

// Frame types sent to the widget.
const (
	frameState  = "state"
	frameAnswer = "answer"
	frameError  = "error"
)

type wsFrame struct {
	Type     string `json:"type"`
	State    string `json:"state,omitempty"`
	Note     string `json:"note,omitempty"`
	Response string `json:"response,omitempty"`
	HTML     string `json:"html,omitempty"`
	Error    string `json:"error,omitempty"`
}

func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxMessageBytes))
}

// handleWebSocket answers messages one at a time. While an answer is being
// resolved the client receives a state frame for every policy transition.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageBytes)

	// Hijacked connections keep the server's request deadlines; a chat
	// session stays open until the client leaves.
	_ = conn.SetReadDeadline(time.Time{})
	_ = conn.SetWriteDeadline(time.Time{})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("Websocket closed unexpectedly")
			}
			return
		}
		if err := s.answerFrame(r, conn, data); err != nil {
			s.logger.Debug().Err(err).Msg("Websocket write failed")
			return
		}
	}
}

func (s *Server) answerFrame(r *http.Request, conn *websocket.Conn, data []byte) error {
	logger := s.logger.WithCorrelationId(uuid.New().String())

	req, detail := decodeChatRequest(data)
	if detail != "" {
		return conn.WriteJSON(wsFrame{Type: frameError, Error: detail})
	}

	var writeErr error
	hook := contextual.WithTransitionHook(func(t contextual.Transition) {
		if writeErr != nil {
			return
		}
		writeErr = conn.WriteJSON(wsFrame{Type: frameState, State: string(t.To), Note: t.Note})
	})

	result, err := s.agent.Answer(r.Context(), req.Message, hook)
	if writeErr != nil {
		return writeErr
	}
	if err != nil {
		logger.Warn().Err(err).Str("kind", contextual.KindOf(err).String()).Msg("Websocket chat failed")
		return conn.WriteJSON(wsFrame{Type: frameError, Error: "Agent error: " + err.Error()})
	}
	logger.Info().Str("source", string(result.Source)).Msg("Websocket chat answered")

	frame := wsFrame{Type: frameAnswer, Response: result.Answer}
	if rendered, err := renderMarkdown(result.Answer); err != nil {
		logger.Warn().Err(err).Msg("Failed to render answer markdown")
	} else {
		frame.HTML = rendered
	}
	return conn.WriteJSON(frame)
}
