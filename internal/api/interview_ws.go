package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/terra-clan/caseprep/internal/hub"
	"github.com/terra-clan/caseprep/internal/interview"
	"github.com/terra-clan/caseprep/internal/metrics"
	"github.com/terra-clan/caseprep/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 32 << 10
	directBuffer   = 8
	msgSlowDown    = "Please slow down and send one message at a time."
	msgBadFrame    = "Invalid message format"
	msgTurnFailed  = "Something went wrong processing your message. Please try again."
	msgMissingCase = "Error: Could not load case data. Please refresh and try again."
	msgInitFailed  = "Error initializing interview. Please refresh and try again."
)

var errConnectionClosed = errors.New("connection closed")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// clientFrame is an inbound candidate message
type clientFrame struct {
	Message string `json:"message"`
}

// handleInterviewWS serves the candidate chat for the session behind the join token.
// Turn traffic arrives through the session room so every connection sees it;
// greetings and rejections go to this connection only.
func (s *Server) handleInterviewWS(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	if _, err := s.sessions.GetByToken(r.Context(), token); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		slog.Error("failed to get session by token", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	metrics.ConnectionOpened()
	defer metrics.ConnectionClosed()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conv, greeting, err := s.sessions.Connect(ctx, token)
	if err != nil {
		msg := msgInitFailed
		if errors.Is(err, interview.ErrMissingCase) {
			msg = msgMissingCase
		}
		slog.Error("failed to start interview", "error", err)
		writeFrame(conn, systemEvent(msg))
		return
	}
	defer conv.Release()

	sessionID := conv.SessionID()
	room, leave, err := s.hub.Subscribe(ctx, sessionID)
	if err != nil {
		slog.Error("failed to join session room", "session_id", sessionID, "error", err)
		writeFrame(conn, systemEvent(msgInitFailed))
		return
	}
	defer leave()

	slog.Info("interview websocket connected", "session_id", sessionID)

	direct := make(chan hub.Event, directBuffer)
	direct <- greeting

	g, gctx := errgroup.WithContext(ctx)

	// unblock the reader once either side stops
	go func() {
		<-gctx.Done()
		conn.Close()
	}()

	// Room and direct frames -> WebSocket
	g.Go(func() error {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-gctx.Done():
				return nil
			case ev, ok := <-room:
				if !ok {
					return errConnectionClosed
				}
				if err := writeFrame(conn, ev); err != nil {
					return err
				}
			case ev := <-direct:
				if err := writeFrame(conn, ev); err != nil {
					return err
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return err
				}
			}
		}
	})

	// WebSocket -> interview
	g.Go(func() error {
		conn.SetReadLimit(maxFrameSize)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		limiter := rate.NewLimiter(rate.Limit(s.interview.RateLimit), s.interview.RateBurst)
		send := func(ev hub.Event) error {
			select {
			case direct <- ev:
				return nil
			case <-gctx.Done():
				return errConnectionClosed
			}
		}

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("websocket read error", "session_id", sessionID, "error", err)
				}
				return errConnectionClosed
			}
			conn.SetReadDeadline(time.Now().Add(pongWait))

			var frame clientFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				if err := send(systemEvent(msgBadFrame)); err != nil {
					return err
				}
				continue
			}

			if !limiter.Allow() {
				if err := send(systemEvent(msgSlowDown)); err != nil {
					return err
				}
				continue
			}

			res, err := conv.Submit(gctx, frame.Message)
			switch {
			case session.IsValidationError(err):
				err = send(systemEvent("⚠️ " + err.Error()))
			case err != nil && gctx.Err() != nil:
				slog.Debug("turn abandoned, connection closed", "session_id", sessionID)
				return errConnectionClosed
			case err != nil:
				slog.Error("failed to process candidate message", "session_id", sessionID, "error", err)
				err = send(systemEvent(msgTurnFailed))
			case !res.Broadcast:
				err = send(hub.Event{
					Message:   res.Reply.Message,
					Role:      "interviewer",
					Phase:     res.Reply.Phase.String(),
					Completed: res.Reply.Completed,
				})
			}
			if err != nil {
				return err
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errConnectionClosed) {
		slog.Debug("interview websocket stopped", "session_id", sessionID, "error", err)
	}
	slog.Info("interview websocket disconnected", "session_id", sessionID)
}

func systemEvent(message string) hub.Event {
	return hub.Event{Message: message, Role: "system"}
}

func writeFrame(conn *websocket.Conn, ev hub.Event) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(ev); err != nil {
		slog.Debug("failed to send interview frame", "error", err)
		return err
	}
	return nil
}
