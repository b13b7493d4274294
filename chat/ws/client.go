package ws

import (
	"context"
	"encoding/json"
	"time"

	"chat-messaging-demo/backend/chat/service"
	apperrors "chat-messaging-demo/backend/pkg/errors"

	"github.com/gorilla/websocket"
)

// Client is one websocket connection watching a single conversation.
type Client struct {
	ID             string
	Conn           *websocket.Conn
	Send           chan []byte
	ConversationID string
	UserID         string
	Hub            *Hub
}

// chatFrame is an inbound text-only send. Attachments go over the
// multipart HTTP endpoint; the socket carries text and replies.
type chatFrame struct {
	Text           string `json:"text"`
	ReplyToRef     string `json:"reply_to_ref,omitempty"`
	AllowLegacyRef bool   `json:"allow_legacy_ref,omitempty"`
}

// reactionFrame is an inbound reaction toggle.
type reactionFrame struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

// ReadPump consumes frames from the peer until the connection drops.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Warn("websocket read failed", "client_id", c.ID, "error", err)
			}
			break
		}

		var envelope Envelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			c.Hub.log.Warn("bad frame", "client_id", c.ID, "error", err)
			continue
		}

		go c.handle(ctx, envelope)
	}
}

func (c *Client) handle(ctx context.Context, envelope Envelope) {
	switch envelope.Type {
	case "chat":
		c.handleChat(ctx, envelope)
	case "reaction":
		c.handleReaction(ctx, envelope)
	case "ping":
		c.send("pong", nil)
	default:
		c.Hub.log.Warn("unknown frame type", "client_id", c.ID, "type", envelope.Type)
	}
}

func (c *Client) handleChat(ctx context.Context, envelope Envelope) {
	var frame chatFrame
	if !c.decodeContent(envelope.Content, &frame) {
		return
	}

	result, err := c.Hub.sends.Send(ctx, service.SendRequest{
		ConversationID: c.ConversationID,
		Sender:         c.UserID,
		Text:           frame.Text,
		ReplyToRef:     frame.ReplyToRef,
		AllowLegacyRef: frame.AllowLegacyRef,
	})
	if err != nil {
		c.sendError(err)
		return
	}
	// The stream broadcast carries the new feed; ack with the stored id.
	c.send("sent", map[string]string{"message_id": result.Message.ID})
}

func (c *Client) handleReaction(ctx context.Context, envelope Envelope) {
	var frame reactionFrame
	if !c.decodeContent(envelope.Content, &frame) {
		return
	}

	if _, err := c.Hub.reactions.Toggle(ctx, c.ConversationID, frame.MessageID, frame.Emoji, c.UserID); err != nil {
		c.sendError(err)
	}
}

// decodeContent re-marshals the envelope's loose content into a typed
// frame.
func (c *Client) decodeContent(content interface{}, out interface{}) bool {
	raw, err := json.Marshal(content)
	if err == nil {
		err = json.Unmarshal(raw, out)
	}
	if err != nil {
		c.Hub.log.Warn("bad frame content", "client_id", c.ID, "error", err)
		c.send("error", map[string]string{"message": "malformed frame content"})
		return false
	}
	return true
}

func (c *Client) send(frameType string, content interface{}) {
	data, err := json.Marshal(Envelope{Type: frameType, Content: content})
	if err != nil {
		c.Hub.log.LogError(err, "frame marshal failed", "client_id", c.ID)
		return
	}
	select {
	case c.Send <- data:
	default:
		c.Hub.log.Warn("frame dropped, blocked channel", "client_id", c.ID)
	}
}

func (c *Client) sendError(err error) {
	appErr := apperrors.FromError(err)
	c.send("error", map[string]string{
		"code":    appErr.Code,
		"message": appErr.Message,
	})
}

// WritePump drains the send channel to the peer and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// Flush any queued frames as separate writes.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				if err := c.Conn.WriteMessage(websocket.TextMessage, <-c.Send); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
