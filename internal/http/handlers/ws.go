package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AppleLamps/Grok-Imagine-FAL/internal/domain"
)

const (
	wsHandshakeTimeout = 30 * time.Second
	wsWriteTimeout     = 10 * time.Second
	wsPongWait         = 60 * time.Second
	wsPingPeriod       = wsPongWait * 9 / 10
)

type wsControl struct {
	Type string `json:"type"`
}

func (a *App) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4 << 10,
		WriteBufferSize: 16 << 10,
		CheckOrigin:     a.checkOrigin,
	}
}

func (a *App) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range a.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

// PipelineSocket is the WebSocket transport. The first client frame carries
// the PipelineInput; afterwards {"type":"stop"} or closing the socket
// cancels the run. Events go out one JSON text frame each.
func (a *App) PipelineSocket(w http.ResponseWriter, r *http.Request) {
	if !a.configured() {
		a.error(w, http.StatusInternalServerError, "not_configured", missingKeyMessage)
		return
	}
	conn, err := a.upgrader().Upgrade(w, r, nil)
	if err != nil {
		a.Logger.Debug().Err(err).Msg("ws: upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxInputBytes)

	sock := &wsWriter{conn: conn}

	_ = conn.SetReadDeadline(time.Now().Add(wsHandshakeTimeout))
	var input domain.PipelineInput
	if err := conn.ReadJSON(&input); err != nil {
		_ = sock.send(domain.Event{Type: domain.EventError, Message: "Invalid JSON body"})
		sock.close(websocket.CloseUnsupportedData, "invalid input")
		return
	}
	input, msg := a.validateInput(input)
	if msg != "" {
		_ = sock.send(domain.Event{Type: domain.EventError, Message: msg})
		sock.close(websocket.ClosePolicyViolation, msg)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go a.readControl(conn, cancel)
	go sock.keepAlive(ctx)

	err = a.Pipeline.Run(ctx, input, func(ev domain.Event) {
		if werr := sock.send(ev); werr != nil {
			cancel()
		}
	})
	if err != nil {
		a.Logger.Info().Err(err).Msg("ws: run ended with error")
	}
	sock.close(websocket.CloseNormalClosure, "done")
}

// readControl consumes client frames until the socket closes or a stop frame
// arrives, then cancels the run.
func (a *App) readControl(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var ctl wsControl
		if json.Unmarshal(raw, &ctl) == nil && ctl.Type == "stop" {
			a.Logger.Info().Msg("ws: stop requested")
			return
		}
	}
}

type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsWriter) send(ev domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return s.conn.WriteJSON(ev)
}

func (s *wsWriter) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (s *wsWriter) close(code int, reason string) {
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteTimeout))
}
