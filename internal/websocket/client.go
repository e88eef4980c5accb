package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lecturehub/backend/internal/logger"
	"github.com/lecturehub/backend/internal/pubsub"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size.
	maxMessageSize = 4096
)

// Client is one websocket connection watching a single lecture topic. Outbound
// frames come from two places: the broker subscription and the client's own
// error frames (bad inbound messages are reported back to the sender only).
type Client struct {
	conn   *websocket.Conn
	broker *pubsub.Broker
	topic  string
	sub    *pubsub.Subscriber

	// self carries frames addressed to this client alone.
	self chan pubsub.Message

	// done is closed when the read pump exits, stopping the write pump.
	done chan struct{}

	log *logger.Logger
}

// NewClient wires a connection to a lecture topic. The caller starts the
// pumps.
func NewClient(conn *websocket.Conn, broker *pubsub.Broker, topic string, log *logger.Logger) *Client {
	sub := pubsub.NewSubscriber(pubsub.DefaultBuffer)
	broker.Subscribe(topic, sub)

	return &Client{
		conn:   conn,
		broker: broker,
		topic:  topic,
		sub:    sub,
		self:   make(chan pubsub.Message, 8),
		done:   make(chan struct{}),
		log:    log,
	}
}

// ReadPump reads inbound frames until the connection drops. A well-formed
// frame is republished to the lecture topic, so every watcher (including the
// sender) receives it. A malformed frame earns the sender an error frame and
// the connection stays open.
func (c *Client) ReadPump() {
	defer func() {
		c.broker.Unsubscribe(c.topic, c.sub)
		close(c.done)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn(context.Background(), "websocket read error", map[string]interface{}{
					"topic": c.topic,
					"error": err.Error(),
				})
			}
			return
		}

		var frame pubsub.Message
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.sendError("invalid message: not valid JSON")
			continue
		}
		if frame.Event == "" {
			c.sendError("invalid message: missing event")
			continue
		}

		c.broker.Publish(c.topic, frame)
	}
}

// WritePump forwards topic messages and self-addressed frames to the peer,
// pinging on an interval to keep the connection alive.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.sub.Channel():
			if !c.writeFrame(msg) {
				return
			}

		case msg := <-c.self:
			if !c.writeFrame(msg) {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *Client) writeFrame(msg pubsub.Message) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.log.Warn(context.Background(), "websocket write error", map[string]interface{}{
			"topic": c.topic,
			"error": err.Error(),
		})
		return false
	}
	return true
}

// sendError queues an error frame for this client only. If the client cannot
// keep up even with its own error reports, the frame is dropped.
func (c *Client) sendError(message string) {
	msg := pubsub.Message{
		Event: pubsub.EventError,
		Data:  map[string]interface{}{"message": message},
	}
	select {
	case c.self <- msg:
	default:
	}
}
