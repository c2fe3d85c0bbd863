package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"quiz-game-service/internal/app"
	"quiz-game-service/internal/domain"
)

type WSHandler struct {
	service  *app.GameService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService) *WSHandler {
	return &WSHandler{
		service: service,
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

type startPayload struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

type answerPayload struct {
	Value string `json:"value"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type sessionPayload struct {
	SessionID string `json:"sessionId"`
}

type hintPayload struct {
	Hint string `json:"hint"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}

// ServeWS upgrades HTTP requests to websockets and forwards player intents to a game engine.
// Passing ?sessionId= reattaches to a game left by an earlier connection.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sessionID := r.URL.Query().Get("sessionId")
	var engine *app.Engine
	if sessionID != "" {
		engine, err = h.service.Reattach(sessionID)
		if err != nil {
			_ = conn.WriteJSON(errorMessage(err.Error()))
			return
		}
	} else {
		sessionID, engine = h.service.Open()
	}
	defer h.service.Detach(sessionID)

	updates, cancel := engine.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "session", Payload: sessionPayload{SessionID: sessionID}}

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: update}:
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		msg, ok := h.handle(r, engine, inbound)
		if !ok {
			continue
		}
		deliver(send, writerDone, msg)
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// deliver queues msg for the writer. It gives up once the writer has exited,
// so a dead connection cannot wedge the read loop.
func deliver(send chan<- outboundMessage[any], writerDone <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}

// handle applies one inbound intent and returns the direct reply, if any.
// State changes reach the client through the engine subscription.
func (h *WSHandler) handle(r *http.Request, engine *app.Engine, inbound inboundMessage) (outboundMessage[any], bool) {
	switch inbound.Type {
	case "start":
		var payload startPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage("invalid start payload"), true
		}
		if err := engine.Start(r.Context(), payload.Name, payload.Category); err != nil {
			if errors.Is(err, domain.ErrValidation) {
				return errorMessage(err.Error()), true
			}
			log.Printf("start game failed: %v", err)
			return errorMessage("could not start the game, try again"), true
		}
		return outboundMessage[any]{}, false
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage("invalid answer payload"), true
		}
		reveal, ok := engine.SubmitAnswer(payload.Value)
		if !ok {
			return outboundMessage[any]{}, false
		}
		return outboundMessage[any]{Type: "reveal", Payload: reveal}, true
	case "pause":
		engine.Pause()
		return outboundMessage[any]{}, false
	case "resume":
		engine.Resume()
		return outboundMessage[any]{}, false
	case "hint":
		hint, ok := engine.RequestHint()
		if !ok {
			return errorMessage("hints are only available during play"), true
		}
		return outboundMessage[any]{Type: "hint", Payload: hintPayload{Hint: hint}}, true
	default:
		return errorMessage("unsupported message type"), true
	}
}
