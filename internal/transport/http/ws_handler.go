package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"battle-arena/internal/app"
	"github.com/gorilla/websocket"
)

// WSHandler keeps a client's duel list, and optionally one duel, live. Every
// push is a fresh authoritative read; nothing is diffed on the wire.
type WSHandler struct {
	service  *app.DuelService
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.DuelService, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type watchPayload struct {
	DuelID string `json:"duelId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and streams duel updates.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		http.Error(w, "missing accountId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	accountUpdates, cancelAccount, err := h.service.SubscribeAccount(ctx, accountID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	// Only the writer goroutine touches the connection for writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Warn("ws write error", "account", accountID, "error", err)
				return
			}
		}
	}()

	enqueue := func(msg outboundMessage[any]) bool {
		select {
		case send <- msg:
			return true
		case <-closeSignals:
		case <-writerDone:
		}
		return false
	}

	var pumps sync.WaitGroup
	pumps.Add(1)
	go func() {
		defer pumps.Done()
		for list := range accountUpdates {
			if !enqueue(outboundMessage[any]{Type: "duels", Payload: list}) {
				return
			}
		}
	}()

	var stopDuel func()
	watchDuel := func(duelID string) error {
		if stopDuel != nil {
			stopDuel()
			stopDuel = nil
		}
		updates, cancel, err := h.service.SubscribeDuel(ctx, duelID, accountID)
		if err != nil {
			return err
		}
		done := make(chan struct{})
		go func() {
			defer close(done)
			for duel := range updates {
				if !enqueue(outboundMessage[any]{Type: "duel", Payload: duel}) {
					return
				}
			}
		}()
		stopDuel = func() {
			cancel()
			<-done
		}
		return nil
	}
	sendError := func(msg string) {
		enqueue(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}})
	}

	if duelID := r.URL.Query().Get("duelId"); duelID != "" {
		if err := watchDuel(duelID); err != nil {
			sendError(err.Error())
		}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "watch":
			var payload watchPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.DuelID == "" {
				sendError("invalid watch payload")
				continue
			}
			if err := watchDuel(payload.DuelID); err != nil {
				sendError(err.Error())
			}
		default:
			sendError("unsupported message type")
		}
	}

	close(closeSignals)
	if stopDuel != nil {
		stopDuel()
	}
	cancelAccount()
	pumps.Wait()
	close(send)
	<-writerDone
}
