package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"quizlive/internal/domain"
	"quizlive/internal/game"
)

// WSHandler upgrades participants onto their push stream and relays their
// actions into the game service. One socket per participant; the server
// writes the projected task after every transition plus periodic
// heartbeats.
type WSHandler struct {
	service   *game.Service
	upgrader  websocket.Upgrader
	heartbeat time.Duration
	log       *slog.Logger
}

func NewWSHandler(service *game.Service, heartbeat time.Duration, log *slog.Logger) *WSHandler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &WSHandler{
		service:   service,
		heartbeat: heartbeat,
		log:       log,
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

type errorPayload struct {
	Message string `json:"message"`
}

type outboundError struct {
	Type    string       `json:"type"`
	Payload errorPayload `json:"payload"`
}

type ackMessage struct {
	Type string `json:"type"`
}

func errorMessage(err error) outboundError {
	return outboundError{Type: "error", Payload: errorPayload{Message: err.Error()}}
}

// ServeWS attaches one participant to a session.
//
// Players join with ?role=player&code=<PIN>&participantId=<id>&name=<nick>;
// the host reconnects with ?role=host&sessionId=<id>&participantId=<id>.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	participantID := query.Get("participantId")
	if participantID == "" {
		http.Error(w, "missing participantId", http.StatusBadRequest)
		return
	}

	var (
		session *domain.GameSession
		err     error
	)
	switch query.Get("role") {
	case "host":
		session, err = h.service.Session(r.Context(), query.Get("sessionId"))
		if err == nil && session.HostID != participantID {
			err = domain.ErrParticipantNotFound
		}
	default:
		code, name := query.Get("code"), query.Get("name")
		if code == "" || name == "" {
			http.Error(w, "missing code or name", http.StatusBadRequest)
			return
		}
		session, err = h.service.Join(r.Context(), code, participantID, name)
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrParticipantNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	updates, cancel, err := h.service.Subscribe(r.Context(), session.ID, participantID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	defer cancel()

	send := make(chan any, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	pumpDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", "session", session.ID, "err", err)
				return
			}
		}
	}()

	go func() {
		defer close(pumpDone)
		heartbeat := time.NewTicker(h.heartbeat)
		defer heartbeat.Stop()
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- update:
				case <-closeSignals:
					return
				}
			case <-heartbeat.C:
				select {
				case send <- game.Heartbeat():
				case <-closeSignals:
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
		switch inbound.Type {
		case "answer":
			answer, err := domain.UnmarshalAnswer(inbound.Payload)
			if err != nil {
				send <- errorMessage(errors.New("invalid answer payload"))
				continue
			}
			if err := h.service.SubmitAnswer(r.Context(), session.ID, participantID, answer); err != nil {
				send <- errorMessage(err)
				continue
			}
			send <- ackMessage{Type: "answerAccepted"}
		case "advance":
			if session.HostID != participantID {
				send <- errorMessage(errors.New("only the host can advance"))
				continue
			}
			if _, err := h.service.RequestTransition(r.Context(), session.ID); err != nil {
				send <- errorMessage(err)
			}
		case "leave":
			_ = h.service.Leave(r.Context(), session.ID, participantID)
		default:
			send <- errorMessage(errors.New("unsupported message type"))
		}
	}

	close(closeSignals)
	<-pumpDone
	close(send)
	<-writerDone
}
