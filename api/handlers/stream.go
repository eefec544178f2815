package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/smartwaste/smartwaste-api/config"
	"github.com/smartwaste/smartwaste-api/location"
)

const wsWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Stream pushes the live location feed to browsers
type Stream struct {
	Feed *location.Feed
}

// EventStreamHandler serves the feed as server-sent events
func (s Stream) EventStreamHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		config.ErrorStatus("streaming unsupported", http.StatusInternalServerError, w, fmt.Errorf("%T does not flush", w))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeEvent := func(v interface{}) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := writeEvent(MessageResponse{Message: "Connected to location stream"}); err != nil {
		return
	}
	err := s.Feed.Stream(r.Context(), func(snap location.Snapshot) error {
		return writeEvent(snap)
	})
	if err != nil {
		zap.S().Debugw("event stream closed", "error", err)
	}
}

// WebSocketHandler serves the feed as one JSON text frame per snapshot
func (s Stream) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorw("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// the read loop only notices the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	err = s.Feed.Stream(ctx, func(snap location.Snapshot) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(snap)
	})
	if err != nil {
		zap.S().Debugw("websocket stream closed", "error", err)
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteWait))
}
