package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"obesityrisk/assessment"
	"obesityrisk/ml"
)

const (
	socketWriteWait  = 10 * time.Second
	socketPongWait   = 60 * time.Second
	socketPingPeriod = socketPongWait * 9 / 10
	socketMaxMessage = 64 * 1024
)

// socketReply carries either an assessment or an error for one request message.
type socketReply struct {
	ID         string                 `json:"id,omitempty"`
	Assessment *assessment.Assessment `json:"assessment,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Field      string                 `json:"field,omitempty"`
	Status     int                    `json:"status"`
}

// handlePredictSocket answers every JSON record message with one reply. An
// optional "id" member is echoed so clients can pipeline requests.
func (h *handlers) handlePredictSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	requestID := GetRequestID(r.Context())
	h.logger.Info("websocket client connected", zap.String("request_id", requestID))

	conn.SetReadLimit(socketMaxMessage)
	conn.SetReadDeadline(time.Now().Add(socketPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(socketPongWait))
	})

	replies := make(chan socketReply, 16)
	done := make(chan struct{})
	go h.socketWriter(conn, replies, done)
	defer func() {
		close(replies)
		<-done
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", zap.String("request_id", requestID), zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(socketPongWait))
		select {
		case replies <- h.socketAssess(message):
		case <-done:
			return
		}
	}
}

func (h *handlers) socketAssess(message []byte) socketReply {
	dec := json.NewDecoder(bytes.NewReader(message))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return socketReply{Error: "message must be a JSON object", Status: http.StatusBadRequest}
	}

	var reply socketReply
	if id, ok := raw["id"].(string); ok {
		reply.ID = id
		delete(raw, "id")
	}
	a, err := h.service.Assess(raw)
	if err != nil {
		reply.Status = statusFor(err)
		if reply.Status == http.StatusInternalServerError {
			h.logger.Error("websocket assessment failed", zap.Error(err))
			err = errors.New("prediction failed")
		}
		reply.Error = err.Error()
		reply.Field, _ = ml.FieldOf(err)
		return reply
	}
	reply.Status = http.StatusOK
	reply.Assessment = a
	return reply
}

func (h *handlers) socketWriter(conn *websocket.Conn, replies <-chan socketReply, done chan<- struct{}) {
	ticker := time.NewTicker(socketPingPeriod)
	defer func() {
		ticker.Stop()
		close(done)
	}()

	for {
		select {
		case reply, ok := <-replies:
			conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(reply); err != nil {
				h.logger.Warn("websocket write error", zap.Error(err))
				conn.Close()
				drain(replies)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				drain(replies)
				return
			}
		}
	}
}

func drain(replies <-chan socketReply) {
	for range replies {
	}
}
