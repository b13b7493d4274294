package models

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"
)

// Participants holds the two members of a conversation. The pair is
// immutable after creation.
type Participants []string

// Other returns the participant that is not currentUser, compared
// case-insensitively. Falls back to the first participant when
// currentUser is not a member.
func (p Participants) Other(currentUser string) string {
	if len(p) == 0 {
		return ""
	}
	current := strings.ToLower(strings.TrimSpace(currentUser))
	for _, user := range p {
		if strings.ToLower(strings.TrimSpace(user)) != current {
			return user
		}
	}
	return p[0]
}

// Contains reports whether user is a participant.
func (p Participants) Contains(user string) bool {
	target := strings.ToLower(strings.TrimSpace(user))
	for _, u := range p {
		if strings.ToLower(strings.TrimSpace(u)) == target {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer for jsonb storage.
func (p Participants) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner for jsonb storage.
func (p *Participants) Scan(value interface{}) error {
	if value == nil {
		*p = Participants{}
		return nil
	}
	data, err := jsonbBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, p)
}

// Conversation is the two-participant container for a message feed.
// LastMessageText and LastUpdatedAt form the sidebar digest;
// LastUpdatedAt is monotonically non-decreasing.
type Conversation struct {
	ID              string       `json:"id" gorm:"primaryKey;type:uuid"`
	Participants    Participants `json:"participants" gorm:"type:jsonb"`
	LastMessageText string       `json:"last_message_text"`
	LastUpdatedAt   time.Time    `json:"last_updated_at"`
	CreatedAt       time.Time    `json:"created_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}
