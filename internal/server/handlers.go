package server

import (
	"embed"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/smhanov/contextual"
)

//go:embed static/index.html
var staticFiles embed.FS

var validate = validator.New() //nolint:gochecknoglobals

const (
	detailInvalidJSON  = "Invalid JSON format"
	detailEmptyMessage = "Message cannot be empty"
)

type chatRequest struct {
	Message string `json:"message" validate:"required"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

func writeDetail(w http.ResponseWriter, statusCode int, detail string) {
	_ = WriteJSON(w, statusCode, errorResponse{Detail: detail})
}

// decodeChatRequest parses and validates a chat message. The returned
// string is the response detail when the request is rejected.
func decodeChatRequest(data []byte) (chatRequest, string) {
	var req chatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return req, detailInvalidJSON
	}
	trimmed := chatRequest{Message: strings.TrimSpace(req.Message)}
	if err := validate.Struct(trimmed); err != nil {
		return req, detailEmptyMessage
	}
	return req, ""
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	_ = WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Stateless Chatbot API running!",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"agent":  s.info,
	})
}

// handleChat answers one message: {"message": "..."} -> {"response": "..."}.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(r)

	body, err := readBody(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, detailInvalidJSON)
		return
	}
	req, detail := decodeChatRequest(body)
	if detail != "" {
		writeDetail(w, http.StatusBadRequest, detail)
		return
	}

	result, err := s.agent.Answer(r.Context(), req.Message)
	if err != nil {
		status := http.StatusInternalServerError
		if contextual.IsClientError(err) {
			status = http.StatusBadRequest
		}
		logger.Warn().Err(err).Str("kind", contextual.KindOf(err).String()).Int("status", status).Msg("Chat failed")
		writeDetail(w, status, "Agent error: "+err.Error())
		return
	}

	logger.Info().
		Str("source", string(result.Source)).
		Str("tools", strings.Join(result.Trace.ToolCalls, ",")).
		Msg("Chat answered")
	_ = WriteJSON(w, http.StatusOK, chatResponse{Response: result.Answer})
}

func (s *Server) handleUI(w http.ResponseWriter, r *http.Request) {
	page, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "widget not available", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}
