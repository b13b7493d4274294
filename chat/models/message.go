package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Message is one entry in a conversation's ordered feed. The id is a
// uuid assigned before the store write, so optimistic inserts and
// persisted records share the same stable identity. Everything except
// Reactions is immutable after creation.
type Message struct {
	ID             string         `json:"id" gorm:"primaryKey;type:uuid"`
	ConversationID string         `json:"conversation_id" gorm:"index;not null"`
	Sender         string         `json:"sender" gorm:"not null"`
	Text           string         `json:"text"`
	CreatedAt      time.Time      `json:"created_at" gorm:"index"`
	Attachments    AttachmentList `json:"attachments" gorm:"type:jsonb"`
	ReplyTo        *ReplyRef      `json:"reply_to,omitempty" gorm:"type:jsonb"`
	Reactions      ReactionMap    `json:"reactions" gorm:"type:jsonb"`
}

func (Message) TableName() string {
	return "messages"
}

// HasContent reports whether the message carries text or attachments.
// A message with neither is invalid and must never be stored.
func (m *Message) HasContent() bool {
	return m.Text != "" || len(m.Attachments) > 0
}

// ReplyRef points at an earlier message plus a cached snippet, so the UI
// can render the quoted context without refetching the target.
type ReplyRef struct {
	TargetMessageID string `json:"target_message_id"`
	SnippetText     string `json:"snippet_text"`
	SnippetSender   string `json:"snippet_sender"`
}

// Value implements driver.Valuer for jsonb storage.
func (r *ReplyRef) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

// Scan implements sql.Scanner for jsonb storage.
func (r *ReplyRef) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	data, err := jsonbBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, r)
}

// ReactionMap maps an emoji to the set of user ids that applied it. A
// user appears at most once per emoji; a user may react with several
// different emojis. The slice is kept in first-reaction order.
type ReactionMap map[string][]string

// Has reports whether userID currently reacts with emoji.
func (rm ReactionMap) Has(emoji, userID string) bool {
	for _, u := range rm[emoji] {
		if u == userID {
			return true
		}
	}
	return false
}

// Toggled returns a copy of the map with userID's reaction on emoji
// flipped. Removing the last user drops the emoji key entirely. Other
// emojis' sets are never touched, and toggling twice with the same
// arguments restores the original map.
func (rm ReactionMap) Toggled(emoji, userID string) ReactionMap {
	out := make(ReactionMap, len(rm))
	for e, users := range rm {
		out[e] = append([]string(nil), users...)
	}

	if out.Has(emoji, userID) {
		kept := out[emoji][:0]
		for _, u := range out[emoji] {
			if u != userID {
				kept = append(kept, u)
			}
		}
		if len(kept) == 0 {
			delete(out, emoji)
		} else {
			out[emoji] = kept
		}
		return out
	}

	out[emoji] = append(out[emoji], userID)
	return out
}

// Value implements driver.Valuer for jsonb storage.
func (rm ReactionMap) Value() (driver.Value, error) {
	if rm == nil {
		return json.Marshal(ReactionMap{})
	}
	return json.Marshal(rm)
}

// Scan implements sql.Scanner for jsonb storage.
func (rm *ReactionMap) Scan(value interface{}) error {
	if value == nil {
		*rm = ReactionMap{}
		return nil
	}
	data, err := jsonbBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, rm)
}

func jsonbBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported jsonb source type %T", value)
	}
}
