package realtime

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"compass/internal/modules/navigation"
)

// Inbound message types sent by devices.
const (
	MsgLocationFix   = "location_fix"
	MsgLocationError = "location_error"
	MsgPong          = "pong"
)

// Message is an inbound device message.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// Inbound receives location messages from devices.
type Inbound interface {
	LocationFix(ctx context.Context, sessionID string, reports []navigation.Report) error
	LocationError(ctx context.Context, sessionID, message string) error
}

type Client struct {
	sessionID string
	conn      *websocket.Conn
	send      chan []byte
	hub       *Hub
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		case <-ctx.Done():
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("realtime: session %s: %v", c.sessionID, err)
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("realtime: session %s sent invalid message: %v", c.sessionID, err)
			continue
		}
		c.handleMessage(ctx, msg)
	}
}

func (c *Client) handleMessage(ctx context.Context, msg Message) {
	if c.hub.inbound == nil {
		return
	}
	switch msg.Type {
	case MsgPong:
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
	case MsgLocationFix:
		reports, err := DecodeReports(msg.Payload)
		if err != nil {
			log.Printf("realtime: session %s sent invalid fix: %v", c.sessionID, err)
			return
		}
		if err := c.hub.inbound.LocationFix(ctx, c.sessionID, reports); err != nil {
			log.Printf("realtime: session %s fix: %v", c.sessionID, err)
		}
	case MsgLocationError:
		var body struct {
			Message string `json:"message"`
		}
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &body); err != nil {
				log.Printf("realtime: session %s sent invalid location error: %v", c.sessionID, err)
				return
			}
		}
		if err := c.hub.inbound.LocationError(ctx, c.sessionID, body.Message); err != nil {
			log.Printf("realtime: session %s location error: %v", c.sessionID, err)
		}
	default:
		log.Printf("realtime: session %s sent unknown message type %q", c.sessionID, msg.Type)
	}
}

// DecodeReports accepts a single fix or a batch.
func DecodeReports(raw json.RawMessage) ([]navigation.Report, error) {
	var batch []navigation.Report
	if err := json.Unmarshal(raw, &batch); err == nil {
		return batch, nil
	}
	var one navigation.Report
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, err
	}
	return []navigation.Report{one}, nil
}
