package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/pixkit/internal/imageops"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

// WebSocket upgrader. Origins are checked against the configured CORS origin.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WebSocketRequest is one image job sent by a client. Image holds the
// encoded file; JSON carries it as base64.
type WebSocketRequest struct {
	Type      string         `json:"type"` // watermark, webp, fit or enhance
	Image     []byte         `json:"image,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// WebSocketResponse reports the progress or result of a job.
type WebSocketResponse struct {
	Type        string  `json:"type"`
	Status      string  `json:"status"` // "processing", "completed", "error"
	Progress    float64 `json:"progress,omitempty"`
	Result      []byte  `json:"result,omitempty"`
	ContentType string  `json:"content_type,omitempty"`
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
	Error       string  `json:"error,omitempty"`
	ErrorType   string  `json:"error_type,omitempty"`
	RequestID   string  `json:"request_id,omitempty"`
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.corsOrigin == "" || s.corsOrigin == "*" {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || origin == s.corsOrigin
}

// webSocketHandler upgrades the connection and serves image jobs on it.
func (s *Server) webSocketHandler(w http.ResponseWriter, r *http.Request) {
	up := upgrader
	up.CheckOrigin = s.checkOrigin
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(r.Context(), conn)
}

func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(s.maxUploadMB * 1024 * 1024 * 2) // base64 overhead
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, conn, data)
		}
	}
}

// handleWebSocketMessage runs one job. Writes happen on the reading
// goroutine only, so conn needs no extra locking.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, data []byte) {
	var req WebSocketRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "", "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	respType := req.Type + "_response"

	switch req.Type {
	case opWatermark, opWebP, opFit, opEnhance:
	default:
		s.sendWebSocketError(conn, requestID, "invalid_request", "Unsupported request type: "+req.Type)
		return
	}
	if len(req.Image) == 0 {
		s.sendWebSocketError(conn, requestID, "invalid_request", "No image data provided")
		return
	}

	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      respType,
		Status:    "processing",
		RequestID: requestID,
	})

	img, _, err := imageops.DecodeImage(bytes.NewReader(req.Image))
	if err != nil {
		s.sendWebSocketError(conn, requestID, "invalid_request", fmt.Sprintf("Failed to decode image: %v", err))
		return
	}

	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      respType,
		Status:    "processing",
		Progress:  0.5,
		RequestID: requestID,
	})

	out, err := s.process(ctx, req.Type, img, optionsToParams(req.Options))
	if err != nil {
		errType := "processing_error"
		if isParamError(err) {
			errType = "invalid_request"
		}
		s.sendWebSocketError(conn, requestID, errType, fmt.Sprintf("%s failed: %v", req.Type, err))
		return
	}

	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:        respType,
		Status:      "completed",
		Progress:    1.0,
		Result:      out.Data,
		ContentType: out.ContentType,
		Width:       out.Width,
		Height:      out.Height,
		RequestID:   requestID,
	})
}

// optionsToParams flattens JSON options into form-style values so both
// APIs share one parameter parser.
func optionsToParams(options map[string]any) url.Values {
	v := url.Values{}
	for key, val := range options {
		switch t := val.(type) {
		case nil:
		case string:
			v.Set(key, t)
		case float64:
			v.Set(key, strconv.FormatFloat(t, 'f', -1, 64))
		case bool:
			v.Set(key, strconv.FormatBool(t))
		default:
			v.Set(key, fmt.Sprint(t))
		}
	}
	return v
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, requestID, errorType, message string) {
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      "error",
		Status:    "error",
		Error:     message,
		ErrorType: errorType,
		RequestID: requestID,
	})
}
