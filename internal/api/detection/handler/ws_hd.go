package detectionHandler

import (
	"context"
	"time"

	"DetectorWeb/internal/api/detection"
	"DetectorWeb/internal/middleware"
	contextPkg "DetectorWeb/pkg/context"
	"DetectorWeb/pkg/handlerUtil"
	"DetectorWeb/pkg/log"

	"github.com/gofiber/websocket/v2"
)

// handleWebSocket annotates every binary frame and answers with the result
// or an error object. The connection survives per-frame failures.
func (h *DetectionHandler) handleWebSocket(c *websocket.Conn) {
	requestID, _ := c.Locals(middleware.RequestIDKey).(string)
	if requestID == "" {
		requestID = "unknown"
	}
	fields := log.Fields{"request_id": requestID, "path": "/detect/ws"}

	h.log.WithFields(fields).Info("Detection WebSocket client connected")
	defer h.log.WithFields(fields).Info("Detection WebSocket client disconnected")

	errHandler := handlerUtil.New(h.log)

	if h.maxUploadBytes > 0 {
		c.SetReadLimit(h.maxUploadBytes)
	}

	c.SetPingHandler(func(data string) error {
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			h.log.WithFields(fields).Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	for {
		if err := c.SetReadDeadline(time.Now().Add(wsReadTimeout)); err != nil {
			h.log.WithFields(fields).Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithFields(fields).Errorf("Detection WebSocket error: %v", err)
			}
			break
		}

		if messageType != websocket.BinaryMessage {
			h.log.WithFields(fields).Warnf("Received unexpected message type: %d", messageType)
			continue
		}

		ctx, cancel := context.WithTimeout(contextPkg.WithRequestID(context.Background(), requestID), h.requestTimeout)
		result, err := h.detectionService.Annotate(ctx, message)
		cancel()

		var reply interface{}
		if err != nil {
			reply = detection.FrameError{Error: errHandler.Message(requestID, err, "/detect/ws", "annotate_frame")}
		} else {
			reply = detection.DetectResponse{Data: result}
		}

		if err := c.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
			h.log.WithFields(fields).Errorf("Error setting write deadline: %v", err)
			break
		}

		if err := c.WriteJSON(reply); err != nil {
			h.log.WithFields(fields).Errorf("Error writing JSON response: %v", err)
			break
		}

		if err := c.SetWriteDeadline(time.Time{}); err != nil {
			h.log.WithFields(fields).Errorf("Error resetting write deadline: %v", err)
			break
		}
	}
}
