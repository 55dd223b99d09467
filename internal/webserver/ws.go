package webserver

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/truthmd/truthlink/internal/session"
)

const (
	wsSubscribeWait = 10 * time.Second
	wsWriteWait     = 10 * time.Second
	wsPongWait      = 60 * time.Second
	wsPingPeriod    = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type subscribeFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

type eventFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// serveWS upgrades the connection and streams session events. The client
// must send a subscribe frame first; the hub replies with snapshot frames
// for the current record, then live frames. A subscriber that falls behind
// has its channel closed and must reconnect to resync.
func (s *WebServer) serveWS(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(wsSubscribeWait))
	var sub subscribeFrame
	if err := conn.ReadJSON(&sub); err != nil {
		writeFrame(conn, eventFrame{Event: "error", Data: echo.Map{"message": "expected subscribe frame"}})
		return nil
	}
	if sub.Type != "subscribe" || sub.SessionID == "" {
		writeFrame(conn, eventFrame{Event: "error", Data: echo.Map{"message": "expected subscribe frame"}})
		return nil
	}
	if _, found := s.manager.Snapshot(sub.SessionID); !found {
		writeFrame(conn, eventFrame{Event: "error", Data: echo.Map{"message": "session not found", "sessionId": sub.SessionID}})
		return nil
	}

	subscriber := s.eventHub.Subscribe(sub.SessionID)
	defer subscriber.Close()

	zap.L().Debug("websocket subscribed", zap.String("session_id", sub.SessionID))

	// read pump: detect client disconnect, keep the pong deadline fresh
	closed := make(chan struct{})
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, okc := <-subscriber.Events():
			if !okc {
				// dropped for falling behind; tell the client to resync
				writeFrame(conn, eventFrame{Event: "error", Data: echo.Map{"message": "subscription dropped, resubscribe to resync"}})
				return nil
			}
			if err := writeFrame(conn, frameFor(ev)); err != nil {
				return nil
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-closed:
			return nil
		}
	}
}

func writeFrame(conn *websocket.Conn, frame eventFrame) error {
	buf, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(websocket.TextMessage, buf)
}

func frameFor(ev session.Event) eventFrame {
	switch ev.Kind {
	case session.EventPairingCode:
		return eventFrame{Event: "pairing_code", Data: echo.Map{
			"sessionId":   ev.SessionID,
			"pairingCode": ev.PairingCode,
		}}
	case session.EventQR:
		return eventFrame{Event: "qr", Data: echo.Map{
			"sessionId": ev.SessionID,
			"qrCode":    ev.QRCode,
		}}
	default:
		data := echo.Map{
			"sessionId": ev.SessionID,
			"status":    ev.Status,
		}
		if ev.Message != "" {
			data["message"] = ev.Message
		}
		if ev.Credential != "" {
			data["credential"] = ev.Credential
		}
		return eventFrame{Event: "status", Data: data}
	}
}
